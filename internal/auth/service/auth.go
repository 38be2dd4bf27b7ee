// Package service is the credential core: registration, login with
// optional TOTP, password recovery and session or token issuance. User
// profiles live in the user service; this layer only ever sees them
// through the directory.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/vaultra/cardbank/internal/auth/domain"
	"github.com/vaultra/cardbank/internal/auth/session"
	"github.com/vaultra/cardbank/internal/auth/store"
	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/internal/platform/directory"
	"github.com/vaultra/cardbank/pkg/cryptox"
)

// ErrInvalidCredentials covers unknown identifier and wrong password
// alike, so a caller cannot probe which accounts exist.
var (
	ErrInvalidCredentials   = errors.New("Invalid credentials")
	ErrUserBlocked          = errors.New("User is blocked")
	ErrTwoFactorRequired    = errors.New("Two-factor code required")
	ErrInvalidTwoFactorCode = errors.New("Invalid two-factor code")
	ErrTwoFactorNotSetup    = errors.New("Two-factor authentication is not set up")
	ErrResetTokenInvalid    = errors.New("Invalid or expired reset token")
	ErrSessionInvalid       = errors.New("Invalid session")
)

const (
	totpIssuer    = "cardbank"
	resetTokenTTL = 15 * time.Minute
	totpPeriod    = 30
	totpSkewSteps = 1
)

type AuthService struct {
	Directory directory.Directory
	Store     store.Store
	Issuer    CredentialIssuer
	Audit     audit.Recorder

	// Sessions is set in session mode and nil in token mode.
	Sessions session.Sessions
	// Tokens is set in token mode and nil in session mode.
	Tokens *TokenIssuer
}

type RegisterRequest struct {
	Email       string
	Phone       string
	FullName    string
	Password    string
	DateOfBirth *time.Time
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (directory.Profile, error) {
	hash, err := cryptox.HashPassword(req.Password)
	if err != nil {
		return directory.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	profile, err := s.Directory.Create(ctx, directory.NewProfile{
		Email:        req.Email,
		Phone:        req.Phone,
		FullName:     req.FullName,
		PasswordHash: hash,
		DateOfBirth:  req.DateOfBirth,
	})
	if err != nil {
		return directory.Profile{}, err
	}

	s.Audit.Record(ctx, profile.ID, audit.EventRegister, map[string]any{"email": profile.Email})
	out := *profile
	out.PasswordHash = ""
	return out, nil
}

type LoginRequest struct {
	Email         string
	Phone         string
	Password      string
	TwoFactorCode string
}

// Login authenticates and issues credentials. When the account has
// confirmed two-factor enrollment, a login without a code fails with
// ErrTwoFactorRequired and the caller retries with one.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (Credentials, error) {
	user, err := s.Directory.Find(ctx, directory.FindQuery{Email: req.Email, Phone: req.Phone})
	if err != nil {
		return Credentials{}, err
	}
	if user == nil {
		return Credentials{}, ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return Credentials{}, ErrInvalidCredentials
		}
		return Credentials{}, err
	}
	if user.Status == "blocked" {
		return Credentials{}, ErrUserBlocked
	}

	if user.TwoFactorEnabled {
		if req.TwoFactorCode == "" {
			return Credentials{}, ErrTwoFactorRequired
		}
		if err := s.checkTOTP(ctx, user.ID, req.TwoFactorCode, true); err != nil {
			return Credentials{}, err
		}
	}

	creds, err := s.Issuer.Issue(ctx, *user)
	if err != nil {
		return Credentials{}, fmt.Errorf("issue credentials: %w", err)
	}

	s.Audit.Record(ctx, user.ID, audit.EventLogin, nil)
	return creds, nil
}

// Refresh mints a new access token against a valid refresh token. The
// refresh token itself is returned unchanged; it stays good until its
// own expiry. Role and status are re-read from the directory so a
// demoted or blocked user cannot refresh stale privileges.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if s.Tokens == nil {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	userID, err := s.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	user, err := s.Directory.Find(ctx, directory.FindQuery{ID: userID})
	if err != nil {
		return domain.TokenPair{}, err
	}
	if user == nil {
		return domain.TokenPair{}, ErrInvalidCredentials
	}
	if user.Status == "blocked" {
		return domain.TokenPair{}, ErrUserBlocked
	}

	access, err := s.Tokens.sign(*user, "access", s.Tokens.AccessSecret, s.Tokens.AccessTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

// TwoFactorSetup is handed to the user exactly once, at enrollment.
type TwoFactorSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

// Setup2FA starts enrollment: any previous secret is discarded and a
// fresh unconfirmed one is stored. Logins are unaffected until the
// secret is confirmed through Enable2FA.
func (s *AuthService) Setup2FA(ctx context.Context, userID string) (TwoFactorSetup, error) {
	user, err := s.Directory.Find(ctx, directory.FindQuery{ID: userID})
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if user == nil {
		return TwoFactorSetup{}, ErrInvalidCredentials
	}

	if err := s.Store.DeleteSecrets(ctx, userID); err != nil {
		return TwoFactorSetup{}, fmt.Errorf("discard previous secrets: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		return TwoFactorSetup{}, fmt.Errorf("generate totp secret: %w", err)
	}

	if err := s.Store.CreateSecret(ctx, domain.TwoFactorSecret{
		UserID: userID,
		Secret: key.Secret(),
	}); err != nil {
		return TwoFactorSetup{}, fmt.Errorf("store totp secret: %w", err)
	}

	return TwoFactorSetup{Secret: key.Secret(), URL: key.URL()}, nil
}

// Enable2FA confirms enrollment with a code from the authenticator and
// turns the login requirement on.
func (s *AuthService) Enable2FA(ctx context.Context, userID, code string) error {
	if err := s.checkTOTP(ctx, userID, code, false); err != nil {
		return err
	}
	if err := s.Store.ConfirmSecret(ctx, userID); err != nil {
		return fmt.Errorf("confirm totp secret: %w", err)
	}
	if err := s.Directory.SetTwoFactor(ctx, userID, true); err != nil {
		return err
	}
	s.Audit.Record(ctx, userID, audit.EventAdminAction, map[string]any{"action": "2fa.enabled"})
	return nil
}

// Verify2FA checks a code against the confirmed secret.
func (s *AuthService) Verify2FA(ctx context.Context, userID, code string) error {
	return s.checkTOTP(ctx, userID, code, true)
}

// Disable2FA requires a valid code, then removes the secret and turns
// the login requirement off.
func (s *AuthService) Disable2FA(ctx context.Context, userID, code string) error {
	if err := s.checkTOTP(ctx, userID, code, true); err != nil {
		return err
	}
	if err := s.Store.DeleteSecrets(ctx, userID); err != nil {
		return fmt.Errorf("delete totp secrets: %w", err)
	}
	if err := s.Directory.SetTwoFactor(ctx, userID, false); err != nil {
		return err
	}
	s.Audit.Record(ctx, userID, audit.EventAdminAction, map[string]any{"action": "2fa.disabled"})
	return nil
}

func (s *AuthService) checkTOTP(ctx context.Context, userID, code string, requireConfirmed bool) error {
	secret, err := s.Store.GetSecret(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTwoFactorNotSetup
	}
	if err != nil {
		return fmt.Errorf("load totp secret: %w", err)
	}
	if requireConfirmed && !secret.Confirmed {
		return ErrTwoFactorNotSetup
	}

	ok, err := totp.ValidateCustom(code, secret.Secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkewSteps,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrInvalidTwoFactorCode
	}
	return nil
}

// RequestPasswordReset issues a single-use token. It succeeds silently
// for unknown emails; the response never reveals whether an account
// exists. The raw token is returned for delivery and only its
// fingerprint is stored.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.Directory.Find(ctx, directory.FindQuery{Email: email})
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}

	if err := s.Store.DeleteTokensForUser(ctx, user.ID); err != nil {
		return "", fmt.Errorf("purge reset tokens: %w", err)
	}

	raw, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	if err := s.Store.CreateToken(ctx, domain.PasswordResetToken{
		TokenHash: cryptox.FingerprintToken(raw),
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
	}); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return raw, nil
}

// ResetPassword consumes a reset token. Whatever the outcome, the token
// cannot be used twice; all of the user's sessions are revoked so a
// stolen session does not survive the reset.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	token, err := s.Store.GetToken(ctx, cryptox.FingerprintToken(rawToken))
	if errors.Is(err, store.ErrNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}
	if token.Expired(time.Now().UTC()) {
		_ = s.Store.DeleteToken(ctx, token.TokenHash)
		return ErrResetTokenInvalid
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Directory.UpdatePassword(ctx, token.UserID, hash); err != nil {
		return err
	}
	if err := s.Store.DeleteTokensForUser(ctx, token.UserID); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if s.Sessions != nil {
		if _, err := s.Sessions.DeleteAll(ctx, token.UserID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
	}

	s.Audit.Record(ctx, token.UserID, audit.EventPasswordChange, map[string]any{"via": "reset"})
	return nil
}

// ChangePassword rotates the password of a logged-in user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.Directory.Find(ctx, directory.FindQuery{ID: userID})
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(user.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return ErrInvalidCredentials
		}
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Directory.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.Audit.Record(ctx, userID, audit.EventPasswordChange, nil)
	return nil
}

// Logout ends one session. Unknown session ids are a no-op.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if s.Sessions == nil {
		return nil
	}
	sess, err := s.Sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.Sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.Audit.Record(ctx, sess.UserID, audit.EventLogout, nil)
	return nil
}

// LogoutAll revokes every session of the user at once.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int, error) {
	if s.Sessions == nil {
		return 0, nil
	}
	n, err := s.Sessions.DeleteAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.Audit.Record(ctx, userID, audit.EventLogoutAll, map[string]any{"revoked": n})
	return n, nil
}

// ValidateSession resolves a session id for the guard middleware of
// sibling services.
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if s.Sessions == nil {
		return domain.Session{}, ErrSessionInvalid
	}
	sess, err := s.Sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return domain.Session{}, ErrSessionInvalid
	}
	if err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}
