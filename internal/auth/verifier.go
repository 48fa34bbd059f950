package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"finance-tracker/internal/apperr"
	"finance-tracker/internal/models"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingCredentials = apperr.NewValidation("missing_credentials", "Email and password are required")
	ErrInvalidCredentials = apperr.NewAuthentication("invalid_credentials", "Invalid email or password")

	// ErrUserNotFound is returned by a UserStore when no user has the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is returned by a UserStore on a duplicate email.
	ErrEmailExists = errors.New("email already registered")
)

// UserStore is the user registry the verifier reads from.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error)
	UserCount(ctx context.Context) (int, error)
}

// NormalizeEmail trims and lower-cases an email. Registries store emails in
// this form so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Verifier checks submitted credentials against a UserStore.
type Verifier struct {
	users UserStore
}

func NewVerifier(users UserStore) *Verifier {
	return &Verifier{users: users}
}

// Verify returns the public view of the user matching email and password.
// An unknown email and a wrong password both yield ErrInvalidCredentials.
func (v *Verifier) Verify(ctx context.Context, email, password string) (*models.UserView, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := v.users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		// Burn the same bcrypt time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.NewInternal(err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	view := user.View()
	return &view, nil
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	return dummy
}

// EnsureUser creates the user unless one with the same email exists. It
// reports whether a user was created.
func EnsureUser(ctx context.Context, users UserStore, email, name, password string) (*models.User, bool, error) {
	email = NormalizeEmail(email)
	existing, err := users.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	user, err := users.CreateUser(ctx, email, name, hash)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
