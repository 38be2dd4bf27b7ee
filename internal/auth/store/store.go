package store

import (
	"context"
	"errors"

	"github.com/vaultra/cardbank/internal/auth/domain"
)

var ErrNotFound = errors.New("store: not found")

// TwoFactorSecrets persists TOTP enrollment state. A user has at most
// one live secret; setup replaces any previous one.
type TwoFactorSecrets interface {
	CreateSecret(ctx context.Context, s domain.TwoFactorSecret) error
	GetSecret(ctx context.Context, userID string) (domain.TwoFactorSecret, error)
	ConfirmSecret(ctx context.Context, userID string) error
	DeleteSecrets(ctx context.Context, userID string) error
}

// ResetTokens persists password reset tokens by fingerprint.
type ResetTokens interface {
	CreateToken(ctx context.Context, t domain.PasswordResetToken) error
	GetToken(ctx context.Context, tokenHash string) (domain.PasswordResetToken, error)
	DeleteToken(ctx context.Context, tokenHash string) error
	// DeleteTokensForUser removes every token of the user, live or
	// expired. Issuing a new token and consuming one both purge here.
	DeleteTokensForUser(ctx context.Context, userID string) error
}

// Store is the auth service's combined persistence surface.
type Store interface {
	TwoFactorSecrets
	ResetTokens
}
