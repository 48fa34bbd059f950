package ledger

import (
	"context"
	"sort"
	"sync"

	"finance-tracker/internal/models"
)

// MemoryStore keeps transactions in a process-local map.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[string]models.Transaction
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]models.Transaction)}
}

func (s *MemoryStore) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.ID] = *tx
	return nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, ownerID string) ([]models.Transaction, error) {
	s.mu.RLock()
	out := make([]models.Transaction, 0)
	for _, tx := range s.txs {
		if tx.OwnerID == ownerID {
			out = append(out, tx)
		}
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) GetTransaction(ctx context.Context, ownerID, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok || tx.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return &tx, nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.txs[tx.ID]
	if !ok || cur.OwnerID != tx.OwnerID {
		return ErrNotFound
	}
	s.txs[tx.ID] = *tx
	return nil
}

func (s *MemoryStore) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.txs[id]
	if !ok || cur.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

// SortNewestFirst orders by CreatedAt descending, breaking ties by ID descending.
func SortNewestFirst(txs []models.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
}
