// Package ledger owns users' financial transactions. Every operation is scoped
// to the acting user: a transaction owned by someone else behaves exactly like
// one that does not exist.
package ledger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"finance-tracker/internal/apperr"
	"finance-tracker/internal/events"
	"finance-tracker/internal/metrics"
	"finance-tracker/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxDescriptionLength is the longest accepted description, in characters.
const MaxDescriptionLength = 500

// MaxAmountScale is the number of decimal places an amount may be written with.
const MaxAmountScale = 8

const maxAmountExponent = 15

// MaxAmount is the exclusive upper bound for a single amount.
var MaxAmount = decimal.New(1, maxAmountExponent)

var (
	ErrInvalidKind        = apperr.NewValidation("invalid_kind", "kind must be income or expense")
	ErrInvalidAmount      = apperr.NewValidation("invalid_amount", "amount must be greater than zero, below 1e15 and have at most 8 decimal places")
	ErrDescriptionTooLong = apperr.NewValidation("description_too_long", "description must be at most 500 characters")
	ErrNotFound           = apperr.NewNotFound("transaction_not_found", "Transaction not found")
)

// Store persists transactions. Lookups by (ownerID, id) return ErrNotFound
// when the row is missing or belongs to another owner.
type Store interface {
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	ListTransactions(ctx context.Context, ownerID string) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, ownerID, id string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, ownerID, id string) error
}

// Ledger validates and applies transaction operations on top of a Store.
type Ledger struct {
	store     Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	// mu serializes mutations so read-modify-write updates cannot interleave.
	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		publisher: events.Noop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "ledger")
	return l
}

// Create records a new transaction for ownerID.
func (l *Ledger) Create(ctx context.Context, ownerID string, kind models.Kind, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	description, err := normalizeDescription(description)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	now := l.timestamp()
	tx := &models.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = l.store.InsertTransaction(ctx, tx)
	l.mu.Unlock()
	if err != nil {
		return nil, apperr.NewInternal(err)
	}

	l.record(ctx, events.TransactionCreated, "create", tx)
	return tx, nil
}

// List returns ownerID's transactions, most recent first.
func (l *Ledger) List(ctx context.Context, ownerID string) ([]models.Transaction, error) {
	txs, err := l.store.ListTransactions(ctx, ownerID)
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

// Get returns a single transaction owned by ownerID.
func (l *Ledger) Get(ctx context.Context, ownerID, id string) (*models.Transaction, error) {
	tx, err := l.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return nil, classify(err)
	}
	return tx, nil
}

// Update applies the non-nil fields of patch. CreatedAt never changes and
// UpdatedAt always moves forward.
func (l *Ledger) Update(ctx context.Context, ownerID, id string, patch models.TransactionPatch) (*models.Transaction, error) {
	if patch.Kind != nil {
		if err := validateKind(*patch.Kind); err != nil {
			return nil, err
		}
	}
	if patch.Amount != nil {
		if err := validateAmount(*patch.Amount); err != nil {
			return nil, err
		}
	}
	var description string
	if patch.Description != nil {
		var err error
		if description, err = normalizeDescription(*patch.Description); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	tx, err := l.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		l.mu.Unlock()
		return nil, classify(err)
	}
	if patch.Kind != nil {
		tx.Kind = *patch.Kind
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Description != nil {
		tx.Description = description
	}
	now := l.timestamp()
	if !now.After(tx.UpdatedAt) {
		now = tx.UpdatedAt.Add(time.Microsecond)
	}
	tx.UpdatedAt = now
	err = l.store.UpdateTransaction(ctx, tx)
	l.mu.Unlock()
	if err != nil {
		return nil, classify(err)
	}

	l.record(ctx, events.TransactionUpdated, "update", tx)
	return tx, nil
}

// Delete permanently removes a transaction owned by ownerID.
func (l *Ledger) Delete(ctx context.Context, ownerID, id string) error {
	l.mu.Lock()
	tx, err := l.store.GetTransaction(ctx, ownerID, id)
	if err == nil {
		err = l.store.DeleteTransaction(ctx, ownerID, id)
	}
	l.mu.Unlock()
	if err != nil {
		return classify(err)
	}

	l.record(ctx, events.TransactionDeleted, "delete", tx)
	return nil
}

// timestamp is truncated to microseconds, the finest precision every store keeps.
func (l *Ledger) timestamp() time.Time {
	return l.now().Round(0).Truncate(time.Microsecond)
}

func (l *Ledger) record(ctx context.Context, t events.Type, op string, tx *models.Transaction) {
	l.metrics.TransactionOp(op)
	if err := l.publisher.Publish(ctx, events.NewEvent(t, tx, l.now())); err != nil {
		l.logger.WarnContext(ctx, "failed to publish ledger event",
			"type", t,
			"transaction_id", tx.ID,
			"error", err,
		)
	}
}

func validateKind(kind models.Kind) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

// validateAmount bounds the exponent before comparing, since comparing
// rescales both operands to the smaller exponent.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if exp := amount.Exponent(); exp < -MaxAmountScale || exp >= maxAmountExponent {
		return ErrInvalidAmount
	}
	if !amount.LessThan(MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

func normalizeDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return "", ErrDescriptionTooLong
	}
	return s, nil
}

// classify keeps ErrNotFound as is and hides anything else behind an internal error.
func classify(err error) error {
	if apperr.KindOf(err) == apperr.NotFound {
		return err
	}
	return apperr.NewInternal(err)
}
