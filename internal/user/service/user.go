package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/internal/user/domain"
	"github.com/vaultra/cardbank/internal/user/store"
	"github.com/vaultra/cardbank/pkg/idx"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("user with this email or phone already exists")
)

// UserService owns the user directory. It performs no credential checks;
// password hashes pass through opaque.
type UserService struct {
	Store store.Users
	Audit audit.Recorder
}

type NewUser struct {
	Email        string
	Phone        string
	FullName     string
	PasswordHash string
	DateOfBirth  *time.Time
	Role         string
	Status       string
}

func (s *UserService) Create(ctx context.Context, nu NewUser) (domain.User, error) {
	u := domain.User{
		ID:           idx.New().String(),
		Email:        nu.Email,
		Phone:        nu.Phone,
		FullName:     nu.FullName,
		PasswordHash: nu.PasswordHash,
		DateOfBirth:  nu.DateOfBirth,
		Role:         nu.Role,
		Status:       nu.Status,
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.Status == "" {
		u.Status = domain.StatusUnverified
	}

	if err := s.Store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

// Find looks a user up by exactly one of id, email or phone. A miss is
// reported as ErrNotFound; RPC callers translate that into a null reply.
func (s *UserService) Find(ctx context.Context, id, email, phone string) (domain.User, error) {
	var (
		u   domain.User
		err error
	)
	switch {
	case id != "":
		u, err = s.Store.GetUserByID(ctx, id)
	case email != "":
		u, err = s.Store.GetUserByEmail(ctx, email)
	case phone != "":
		u, err = s.Store.GetUserByPhone(ctx, phone)
	default:
		return domain.User{}, ErrNotFound
	}

	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if err := s.mapStoreErr(s.Store.UpdatePasswordHash(ctx, userID, passwordHash)); err != nil {
		return err
	}
	s.Audit.Record(ctx, userID, audit.EventAdminAction, map[string]any{"action": "user.password_updated"})
	return nil
}

func (s *UserService) SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.mapStoreErr(s.Store.SetTwoFactorEnabled(ctx, userID, enabled))
}

func (s *UserService) SetStatus(ctx context.Context, userID, status string) error {
	if err := s.mapStoreErr(s.Store.SetStatus(ctx, userID, status)); err != nil {
		return err
	}
	s.Audit.Record(ctx, userID, audit.EventAdminAction, map[string]any{
		"action": "user.status_changed",
		"status": status,
	})
	return nil
}

func (s *UserService) mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
