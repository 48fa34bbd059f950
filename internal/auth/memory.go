package auth

import (
	"context"
	"sync"
	"time"

	"finance-tracker/internal/models"

	"github.com/google/uuid"
)

// MemoryUsers is an in-process user registry keyed by normalized email.
type MemoryUsers struct {
	mu      sync.RWMutex
	byEmail map[string]*models.User
}

// Compile-time interface check.
var _ UserStore = (*MemoryUsers)(nil)

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byEmail: make(map[string]*models.User)}
}

func (m *MemoryUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryUsers) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	email = NormalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[email]; ok {
		return nil, ErrEmailExists
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.byEmail[email] = u
	cp := *u
	return &cp, nil
}

func (m *MemoryUsers) UserCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byEmail), nil
}
