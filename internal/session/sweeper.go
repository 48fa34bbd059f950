package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically removes expired sessions from a Store.
type Sweeper struct {
	store    Store
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger

	// OnSweep, when set, is called with the number removed by each successful sweep.
	OnSweep func(removed int)

	mu      sync.RWMutex
	lastRun time.Time
	removed int64
	errors  int64
}

// SweepStats reports what the sweeper has done so far.
type SweepStats struct {
	LastRun time.Time
	Removed int64
	Errors  int64
}

// NewSweeper creates a sweeper. A non-positive interval defaults to one hour.
func NewSweeper(store Store, maxAge, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger.With("component", "session_sweeper"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = w.RunNow(ctx)
		}
	}
}

// RunNow performs one sweep immediately.
func (w *Sweeper) RunNow(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	removed, err := w.store.SweepExpired(ctx, w.maxAge)

	w.mu.Lock()
	w.lastRun = time.Now()
	w.removed += int64(removed)
	if err != nil {
		w.errors++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("session sweep failed", "error", err)
		return removed, err
	}
	if w.OnSweep != nil {
		w.OnSweep(removed)
	}
	if removed > 0 {
		w.logger.Info("expired sessions removed", "count", removed)
	}
	return removed, nil
}

func (w *Sweeper) Stats() SweepStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return SweepStats{LastRun: w.lastRun, Removed: w.removed, Errors: w.errors}
}
