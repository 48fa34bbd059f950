package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a transaction as money coming in or going out.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Transaction represents a single ledger entry owned by one user.
type Transaction struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"-"`
	Kind        Kind            `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TransactionPatch carries the fields of a partial update. Nil fields are left untouched.
type TransactionPatch struct {
	Kind        *Kind
	Amount      *decimal.Decimal
	Description *string
}

// Empty reports whether the patch changes nothing.
func (p TransactionPatch) Empty() bool {
	return p.Kind == nil && p.Amount == nil && p.Description == nil
}

// User represents a user account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// View returns the public projection of the user.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name}
}

// UserView is the externally safe projection of a User.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session binds an opaque token to an authenticated user.
type Session struct {
	Token          string    `json:"token"`
	User           UserView  `json:"user"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// Expired reports whether the session has been idle longer than maxAge at now.
func (s *Session) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastAccessedAt) > maxAge
}

// MonthlyFigures summarizes one month of activity.
type MonthlyFigures struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Change   decimal.Decimal `json:"change"`
}
