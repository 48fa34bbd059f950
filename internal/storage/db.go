package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/models"

	"github.com/google/uuid"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to a SQLite file holding users and transactions.
type DB struct {
	conn *sql.DB
}

var (
	_ auth.UserStore = (*DB)(nil)
	_ ledger.Store   = (*DB)(nil)
)

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Conn exposes the underlying handle for stores that share the schema, such as
// session.SQLStore.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser creates a new user with the given email, display name and password hash.
func (db *DB) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        auth.NormalizeEmail(email),
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, auth.ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?",
		auth.NormalizeEmail(email),
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// InsertTransaction stores a new transaction.
func (db *DB) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, kind, amount, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, string(tx.Kind), tx.Amount.String(), tx.Description,
		tx.CreatedAt.UTC(), tx.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListTransactions retrieves an owner's transactions ordered by creation time descending.
func (db *DB) ListTransactions(ctx context.Context, ownerID string) ([]models.Transaction, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, owner_id, kind, amount, description, created_at, updated_at
		FROM transactions WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

// GetTransaction retrieves a single transaction owned by ownerID.
func (db *DB) GetTransaction(ctx context.Context, ownerID, id string) (*models.Transaction, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, owner_id, kind, amount, description, created_at, updated_at
		FROM transactions WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	return tx, err
}

// UpdateTransaction overwrites the mutable fields of a transaction.
func (db *DB) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE transactions SET kind = ?, amount = ?, description = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		string(tx.Kind), tx.Amount.String(), tx.Description, tx.UpdatedAt.UTC(),
		tx.ID, tx.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return requireOneRow(res)
}

// DeleteTransaction removes a transaction owned by ownerID.
func (db *DB) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM transactions WHERE id = ? AND owner_id = ?",
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*models.Transaction, error) {
	var tx models.Transaction
	var kind string
	err := s.Scan(&tx.ID, &tx.OwnerID, &kind, &tx.Amount, &tx.Description, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	tx.Kind = models.Kind(kind)
	return &tx, nil
}
