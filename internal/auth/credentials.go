package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"expense-ledger/internal/models"
	"expense-ledger/internal/storage"
)

const (
	// MinUsernameLength is the shortest accepted username, in characters.
	MinUsernameLength = 3
	// MinPasswordLength is the shortest accepted password, in characters.
	MinPasswordLength = 6
)

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = fmt.Errorf("username must be at least %d characters long", MinUsernameLength)
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
)

// UserStore is the persistence the credential store needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Credentials registers and verifies users.
type Credentials struct {
	users UserStore
	// dummyHash is compared against when the user does not exist so that a
	// miss costs the same as a wrong password.
	dummyHash string
}

// NewCredentials creates a credential store backed by users.
func NewCredentials(users UserStore) (*Credentials, error) {
	dummy, err := HashPassword("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Credentials{users: users, dummyHash: dummy}, nil
}

// Register creates a user. Usernames are matched exactly, including case.
func (c *Credentials) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return nil, ErrInvalidUsername
	}
	if utf8.RuneCountInString(password) < MinPasswordLength || strings.TrimSpace(password) == "" {
		return nil, ErrWeakPassword
	}

	_, err := c.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, ErrDuplicateUsername
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := c.users.CreateUser(ctx, username, hash)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return user, nil
}

// Verify reports whether password is correct for username. An unknown user
// and a wrong password both return false with a nil error; only store
// failures return an error.
func (c *Credentials) Verify(ctx context.Context, username, password string) (bool, error) {
	_, err := c.Authenticate(ctx, username, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrInvalidCredentials):
		return false, nil
	default:
		return false, err
	}
}

// Authenticate returns the user for a correct username and password, or
// ErrInvalidCredentials.
func (c *Credentials) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := c.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			CheckPassword(password, c.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
