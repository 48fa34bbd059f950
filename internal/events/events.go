// Package events publishes ledger changes to interested consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"finance-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// Type names a ledger change.
type Type string

const (
	TransactionCreated Type = "transaction.created"
	TransactionUpdated Type = "transaction.updated"
	TransactionDeleted Type = "transaction.deleted"
)

// Event describes one ledger change.
type Event struct {
	Type          Type            `json:"type"`
	TransactionID string          `json:"transactionId"`
	OwnerID       string          `json:"ownerId"`
	Kind          models.Kind     `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// NewEvent builds an event of type t for tx.
func NewEvent(t Type, tx *models.Transaction, at time.Time) Event {
	return Event{
		Type:          t,
		TransactionID: tx.ID,
		OwnerID:       tx.OwnerID,
		Kind:          tx.Kind,
		Amount:        tx.Amount,
		OccurredAt:    at,
	}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
