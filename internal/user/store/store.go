package store

import (
	"context"
	"errors"

	"github.com/vaultra/cardbank/internal/user/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Users is the directory's data access interface.
type Users interface {
	// CreateUser inserts a new user. Returns ErrAlreadyExists when email
	// or phone is already taken.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByPhone(ctx context.Context, phone string) (domain.User, error)

	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// SetTwoFactorEnabled mirrors the auth service's enabled-secret state
	// onto the profile.
	SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error

	SetStatus(ctx context.Context, userID, status string) error

	DeleteUser(ctx context.Context, userID string) error
}
