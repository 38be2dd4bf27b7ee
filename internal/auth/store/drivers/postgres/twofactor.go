package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vaultra/cardbank/internal/auth/domain"
	"github.com/vaultra/cardbank/internal/auth/store"
)

func (s *Store) CreateSecret(ctx context.Context, sec domain.TwoFactorSecret) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO two_factor_secrets (user_id, secret, confirmed)
		VALUES ($1, $2, $3)`,
		sec.UserID, sec.Secret, sec.Confirmed,
	)
	return err
}

func (s *Store) GetSecret(ctx context.Context, userID string) (domain.TwoFactorSecret, error) {
	var sec domain.TwoFactorSecret
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, secret, confirmed, created_at
		FROM two_factor_secrets WHERE user_id = $1`,
		userID,
	).Scan(&sec.UserID, &sec.Secret, &sec.Confirmed, &sec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TwoFactorSecret{}, store.ErrNotFound
	}
	if err != nil {
		return domain.TwoFactorSecret{}, err
	}
	return sec, nil
}

func (s *Store) ConfirmSecret(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE two_factor_secrets SET confirmed = TRUE WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSecrets(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM two_factor_secrets WHERE user_id = $1`,
		userID,
	)
	return err
}
