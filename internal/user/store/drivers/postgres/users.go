package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/vaultra/cardbank/internal/user/domain"
	"github.com/vaultra/cardbank/internal/user/store"
)

const userColumns = `id, email, phone, full_name, password_hash, date_of_birth,
	role, status, two_factor_enabled, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, phone, full_name, password_hash, date_of_birth, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Phone, u.FullName, u.PasswordHash, u.DateOfBirth, u.Role, u.Status,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Phone, &u.FullName, &u.PasswordHash, &u.DateOfBirth,
		&u.Role, &u.Status, &u.TwoFactorEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, store.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return s.updateOne(ctx, `
		UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`,
		newHash, userID)
}

func (s *Store) SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.updateOne(ctx, `
		UPDATE users SET two_factor_enabled = $1, updated_at = now() WHERE id = $2`,
		enabled, userID)
}

func (s *Store) SetStatus(ctx context.Context, userID, status string) error {
	return s.updateOne(ctx, `
		UPDATE users SET status = $1, updated_at = now() WHERE id = $2`,
		status, userID)
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.updateOne(ctx, `DELETE FROM users WHERE id = $1`, userID)
}

func (s *Store) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
