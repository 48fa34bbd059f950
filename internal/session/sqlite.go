package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/models"
)

// SQLStore keeps sessions in the sessions table of the SQLite database
// opened by storage.NewDB, so they survive restarts. Timestamps are stored
// as unix microseconds.
type SQLStore struct {
	conn   *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(conn *sql.DB, opts ...Option) *SQLStore {
	o := buildOptions(opts)
	return &SQLStore{conn: conn, maxAge: o.maxAge, now: o.now}
}

func (s *SQLStore) Create(ctx context.Context, user models.UserView) (string, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	now := s.now().UnixMicro()
	_, err = s.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, created_at, last_accessed_at) VALUES (?, ?, ?, ?)",
		token, user.ID, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

func (s *SQLStore) Resolve(ctx context.Context, token string) (*models.UserView, bool, error) {
	if token == "" {
		return nil, false, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin session lookup: %w", err)
	}
	defer tx.Rollback()

	var (
		user         models.UserView
		lastAccessed int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT s.last_accessed_at, u.id, u.email, u.name
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ?`,
		token,
	).Scan(&lastAccessed, &user.ID, &user.Email, &user.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}

	now := s.now()
	sess := models.Session{LastAccessedAt: time.UnixMicro(lastAccessed)}
	if s.maxAge > 0 && sess.Expired(now, s.maxAge) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
			return nil, false, fmt.Errorf("failed to delete expired session: %w", err)
		}
		return nil, false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET last_accessed_at = ? WHERE token = ?",
		now.UnixMicro(), token,
	); err != nil {
		return nil, false, fmt.Errorf("failed to refresh session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to refresh session: %w", err)
	}
	return &user, true, nil
}

func (s *SQLStore) Invalidate(ctx context.Context, token string) (bool, error) {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge).UnixMicro()
	res, err := s.conn.ExecContext(ctx, "DELETE FROM sessions WHERE last_accessed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}
