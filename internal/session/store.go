// Package session keeps the mapping from opaque session tokens to the users
// they authenticate. Expiry is sliding: every successful Resolve pushes the
// deadline out by the configured max age.
package session

import (
	"context"
	"time"

	"finance-tracker/internal/models"
)

// DefaultMaxAge is how long an idle session survives.
const DefaultMaxAge = 7 * 24 * time.Hour

// Store is implemented by every session backend.
type Store interface {
	// Create issues a fresh token bound to user.
	Create(ctx context.Context, user models.UserView) (string, error)
	// Resolve returns the user bound to token and refreshes its last access
	// time. ok is false when the token is unknown or expired.
	Resolve(ctx context.Context, token string) (user *models.UserView, ok bool, err error)
	// Invalidate removes the session and reports whether it existed.
	Invalidate(ctx context.Context, token string) (bool, error)
	// SweepExpired removes sessions idle for longer than maxAge.
	SweepExpired(ctx context.Context, maxAge time.Duration) (int, error)
	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	maxAge time.Duration
	now    func() time.Time
}

// WithMaxAge sets the idle lifetime used for lazy expiry on Resolve.
func WithMaxAge(d time.Duration) Option {
	return func(o *options) { o.maxAge = d }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{maxAge: DefaultMaxAge, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
