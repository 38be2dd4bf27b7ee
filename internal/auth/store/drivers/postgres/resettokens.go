package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vaultra/cardbank/internal/auth/domain"
	"github.com/vaultra/cardbank/internal/auth/store"
)

func (s *Store) CreateToken(ctx context.Context, t domain.PasswordResetToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)`,
		t.TokenHash, t.UserID, t.ExpiresAt,
	)
	return err
}

func (s *Store) GetToken(ctx context.Context, tokenHash string) (domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	err := s.db.QueryRowContext(ctx, `
		SELECT token_hash, user_id, expires_at, created_at
		FROM password_reset_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PasswordResetToken{}, store.ErrNotFound
	}
	if err != nil {
		return domain.PasswordResetToken{}, err
	}
	return t, nil
}

func (s *Store) DeleteToken(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM password_reset_tokens WHERE token_hash = $1`,
		tokenHash,
	)
	return err
}

func (s *Store) DeleteTokensForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM password_reset_tokens WHERE user_id = $1`,
		userID,
	)
	return err
}
