package session

import (
	"context"
	"sync"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/models"
)

// MemoryStore keeps sessions in a process-local map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	maxAge   time.Duration
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		maxAge:   o.maxAge,
		now:      o.now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, user models.UserView) (string, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = &models.Session{
		Token:          token,
		User:           user,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	return token, nil
}

func (s *MemoryStore) Resolve(ctx context.Context, token string) (*models.UserView, bool, error) {
	if token == "" {
		return nil, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, false, nil
	}
	now := s.now()
	if s.maxAge > 0 && sess.Expired(now, s.maxAge) {
		delete(s.sessions, token)
		return nil, false, nil
	}
	sess.LastAccessedAt = now
	user := sess.User
	return &user, true, nil
}

func (s *MemoryStore) Invalidate(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false, nil
	}
	delete(s.sessions, token)
	return true, nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now, maxAge) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
