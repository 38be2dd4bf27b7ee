package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vaultra/cardbank/internal/auth/domain"
	"github.com/vaultra/cardbank/internal/auth/session"
	"github.com/vaultra/cardbank/internal/platform/directory"
)

// Credentials is what a successful login hands back. Exactly one of the
// two fields is populated, depending on the deployment's issuer.
type Credentials struct {
	SessionID string
	Tokens    *domain.TokenPair
}

// CredentialIssuer turns an authenticated user into credentials.
type CredentialIssuer interface {
	Issue(ctx context.Context, user directory.Profile) (Credentials, error)
}

// SessionIssuer mints server-side sessions.
type SessionIssuer struct {
	Sessions session.Sessions
}

func (i *SessionIssuer) Issue(ctx context.Context, user directory.Profile) (Credentials, error) {
	// Session ids are random, not sortable; they leak nothing about
	// creation time to whoever holds the cookie.
	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: time.Now().UTC(),
	}
	if err := i.Sessions.Create(ctx, sess); err != nil {
		return Credentials{}, err
	}
	return Credentials{SessionID: sess.ID}, nil
}

// TokenIssuer mints a signed access/refresh pair. The refresh secret
// falls back to the access secret when the deployment configures only
// one.
type TokenIssuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func (i *TokenIssuer) Issue(_ context.Context, user directory.Profile) (Credentials, error) {
	access, err := i.sign(user, "access", i.AccessSecret, i.AccessTTL)
	if err != nil {
		return Credentials{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := i.sign(user, "refresh", i.refreshSecret(), i.RefreshTTL)
	if err != nil {
		return Credentials{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return Credentials{Tokens: &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}}, nil
}

func (i *TokenIssuer) sign(user directory.Profile, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": user.Role,
		"typ":  typ,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyRefresh checks the signature and type of a refresh token and
// returns the subject user id.
func (i *TokenIssuer) VerifyRefresh(raw string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.refreshSecret(), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	if typ, _ := claims["typ"].(string); typ != "refresh" {
		return "", ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidCredentials
	}
	return sub, nil
}

func (i *TokenIssuer) refreshSecret() []byte {
	if len(i.RefreshSecret) > 0 {
		return i.RefreshSecret
	}
	return i.AccessSecret
}
