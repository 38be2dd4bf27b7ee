package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/vaultra/cardbank/internal/auth/domain"
	"github.com/vaultra/cardbank/internal/auth/session"
	"github.com/vaultra/cardbank/internal/auth/store"
	"github.com/vaultra/cardbank/internal/platform/directory"
	"github.com/vaultra/cardbank/pkg/cryptox"
)

// fakeDirectory is an in-memory user service.
type fakeDirectory struct {
	users map[string]*directory.Profile
}

func (f *fakeDirectory) Find(_ context.Context, q directory.FindQuery) (*directory.Profile, error) {
	for _, u := range f.users {
		if (q.ID != "" && u.ID == q.ID) ||
			(q.Email != "" && u.Email == q.Email) ||
			(q.Phone != "" && u.Phone == q.Phone) {
			dup := *u
			return &dup, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) Create(_ context.Context, np directory.NewProfile) (*directory.Profile, error) {
	p := &directory.Profile{
		ID:           "u-" + np.Email,
		Email:        np.Email,
		Phone:        np.Phone,
		FullName:     np.FullName,
		PasswordHash: np.PasswordHash,
		Role:         "user",
		Status:       "unverified",
	}
	f.users[p.ID] = p
	return p, nil
}

func (f *fakeDirectory) UpdatePassword(_ context.Context, userID, hash string) error {
	f.users[userID].PasswordHash = hash
	return nil
}

func (f *fakeDirectory) SetTwoFactor(_ context.Context, userID string, enabled bool) error {
	f.users[userID].TwoFactorEnabled = enabled
	return nil
}

func (f *fakeDirectory) SetStatus(_ context.Context, userID, status string) error {
	f.users[userID].Status = status
	return nil
}

// fakeAuthStore holds secrets and reset tokens in memory.
type fakeAuthStore struct {
	secrets map[string]domain.TwoFactorSecret
	tokens  map[string]domain.PasswordResetToken
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		secrets: map[string]domain.TwoFactorSecret{},
		tokens:  map[string]domain.PasswordResetToken{},
	}
}

func (f *fakeAuthStore) CreateSecret(_ context.Context, s domain.TwoFactorSecret) error {
	f.secrets[s.UserID] = s
	return nil
}

func (f *fakeAuthStore) GetSecret(_ context.Context, userID string) (domain.TwoFactorSecret, error) {
	s, ok := f.secrets[userID]
	if !ok {
		return domain.TwoFactorSecret{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeAuthStore) ConfirmSecret(_ context.Context, userID string) error {
	s, ok := f.secrets[userID]
	if !ok {
		return store.ErrNotFound
	}
	s.Confirmed = true
	f.secrets[userID] = s
	return nil
}

func (f *fakeAuthStore) DeleteSecrets(_ context.Context, userID string) error {
	delete(f.secrets, userID)
	return nil
}

func (f *fakeAuthStore) CreateToken(_ context.Context, t domain.PasswordResetToken) error {
	f.tokens[t.TokenHash] = t
	return nil
}

func (f *fakeAuthStore) GetToken(_ context.Context, hash string) (domain.PasswordResetToken, error) {
	t, ok := f.tokens[hash]
	if !ok {
		return domain.PasswordResetToken{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeAuthStore) DeleteToken(_ context.Context, hash string) error {
	delete(f.tokens, hash)
	return nil
}

func (f *fakeAuthStore) DeleteTokensForUser(_ context.Context, userID string) error {
	for h, t := range f.tokens {
		if t.UserID == userID {
			delete(f.tokens, h)
		}
	}
	return nil
}

// fakeSessions is an in-memory session store.
type fakeSessions struct {
	sessions map[string]domain.Session
}

func (f *fakeSessions) Create(_ context.Context, s domain.Session) error {
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (domain.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return domain.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) DeleteAll(_ context.Context, userID string) (int, error) {
	n := 0
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, string, string, map[string]any) {}

const testPassword = "correct horse battery staple"

func newAuthFixture(t *testing.T) (*AuthService, *fakeDirectory, *fakeAuthStore, *fakeSessions) {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	dir := &fakeDirectory{users: map[string]*directory.Profile{
		"u1": {
			ID:           "u1",
			Email:        "alice@example.com",
			Phone:        "+15550001111",
			PasswordHash: hash,
			Role:         "user",
			Status:       "active",
		},
	}}
	st := newFakeAuthStore()
	sessions := &fakeSessions{sessions: map[string]domain.Session{}}

	svc := &AuthService{
		Directory: dir,
		Store:     st,
		Sessions:  sessions,
		Issuer:    &SessionIssuer{Sessions: sessions},
		Audit:     nopAudit{},
	}
	return svc, dir, st, sessions
}

func TestLoginIssuesSession(t *testing.T) {
	svc, _, _, sessions := newAuthFixture(t)

	creds, err := svc.Login(t.Context(), LoginRequest{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	require.NotEmpty(t, creds.SessionID)
	require.Nil(t, creds.Tokens)

	sess, err := svc.ValidateSession(t.Context(), creds.SessionID)
	require.NoError(t, err)
	require.Equal(t, "u1", sess.UserID)
	require.Equal(t, "user", sess.Role)
	require.Len(t, sessions.sessions, 1)
}

func TestLoginByPhone(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)

	creds, err := svc.Login(t.Context(), LoginRequest{
		Phone:    "+15550001111",
		Password: testPassword,
	})
	require.NoError(t, err)
	require.NotEmpty(t, creds.SessionID)
}

// TestLoginUnifiedFailureMessage verifies that a wrong password and an
// unknown account fail identically, so login cannot be used to probe
// which emails are registered.
func TestLoginUnifiedFailureMessage(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)

	_, errWrongPassword := svc.Login(t.Context(), LoginRequest{
		Email:    "alice@example.com",
		Password: "nope",
	})
	_, errUnknownUser := svc.Login(t.Context(), LoginRequest{
		Email:    "nobody@example.com",
		Password: testPassword,
	})

	require.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, errUnknownUser, ErrInvalidCredentials)
	require.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())
}

func TestLoginBlockedUser(t *testing.T) {
	svc, dir, _, _ := newAuthFixture(t)
	dir.users["u1"].Status = "blocked"

	_, err := svc.Login(t.Context(), LoginRequest{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	require.ErrorIs(t, err, ErrUserBlocked)
}

func enroll2FA(t *testing.T, svc *AuthService) string {
	t.Helper()

	setup, err := svc.Setup2FA(t.Context(), "u1")
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Contains(t, setup.URL, "otpauth://")

	code, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, svc.Enable2FA(t.Context(), "u1", code))
	return setup.Secret
}

func TestTwoFactorLoginFlow(t *testing.T) {
	svc, dir, _, _ := newAuthFixture(t)
	secret := enroll2FA(t, svc)
	require.True(t, dir.users["u1"].TwoFactorEnabled)

	// Password alone no longer logs in.
	_, err := svc.Login(t.Context(), LoginRequest{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	require.ErrorIs(t, err, ErrTwoFactorRequired)

	_, err = svc.Login(t.Context(), LoginRequest{
		Email:         "alice@example.com",
		Password:      testPassword,
		TwoFactorCode: "000000",
	})
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	creds, err := svc.Login(t.Context(), LoginRequest{
		Email:         "alice@example.com",
		Password:      testPassword,
		TwoFactorCode: code,
	})
	require.NoError(t, err)
	require.NotEmpty(t, creds.SessionID)
}

// TestTwoFactorClockSkew verifies the one-step validation window: a code
// from the previous period still passes, one from three periods ago does
// not.
func TestTwoFactorClockSkew(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	secret := enroll2FA(t, svc)

	codeAt := func(offset time.Duration) string {
		code, err := totp.GenerateCodeCustom(secret, time.Now().UTC().Add(offset), totp.ValidateOpts{
			Period:    totpPeriod,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		require.NoError(t, err)
		return code
	}

	require.NoError(t, svc.Verify2FA(t.Context(), "u1", codeAt(-totpPeriod*time.Second)))
	require.ErrorIs(t, svc.Verify2FA(t.Context(), "u1", codeAt(-3*totpPeriod*time.Second)), ErrInvalidTwoFactorCode)
}

func TestEnable2FAWithoutSetup(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)

	err := svc.Enable2FA(t.Context(), "u1", "123456")
	require.ErrorIs(t, err, ErrTwoFactorNotSetup)
}

func TestSetup2FAReplacesPreviousSecret(t *testing.T) {
	svc, _, st, _ := newAuthFixture(t)
	enroll2FA(t, svc)

	setup, err := svc.Setup2FA(t.Context(), "u1")
	require.NoError(t, err)

	// The replacement secret starts unconfirmed again.
	stored := st.secrets["u1"]
	require.Equal(t, setup.Secret, stored.Secret)
	require.False(t, stored.Confirmed)
}

func TestDisable2FA(t *testing.T) {
	svc, dir, st, _ := newAuthFixture(t)
	secret := enroll2FA(t, svc)

	code, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, svc.Disable2FA(t.Context(), "u1", code))

	require.False(t, dir.users["u1"].TwoFactorEnabled)
	require.Empty(t, st.secrets)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, dir, _, sessions := newAuthFixture(t)

	// An active session that must not survive the reset.
	creds, err := svc.Login(t.Context(), LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)
	require.Len(t, sessions.sessions, 1)

	token, err := svc.RequestPasswordReset(t.Context(), "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(t.Context(), token, "a brand new password"))
	require.NoError(t, cryptox.VerifyPassword(dir.users["u1"].PasswordHash, "a brand new password"))
	require.Empty(t, sessions.sessions, "sessions must be revoked on reset")
	_ = creds

	// Single use.
	err = svc.ResetPassword(t.Context(), token, "yet another password")
	require.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestPasswordResetUnknownEmailSilent(t *testing.T) {
	svc, _, st, _ := newAuthFixture(t)

	token, err := svc.RequestPasswordReset(t.Context(), "nobody@example.com")
	require.NoError(t, err)
	require.Empty(t, token)
	require.Empty(t, st.tokens)
}

func TestPasswordResetExpiredToken(t *testing.T) {
	svc, _, st, _ := newAuthFixture(t)

	token, err := svc.RequestPasswordReset(t.Context(), "alice@example.com")
	require.NoError(t, err)

	hash := cryptox.FingerprintToken(token)
	expired := st.tokens[hash]
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	st.tokens[hash] = expired

	err = svc.ResetPassword(t.Context(), token, "whatever")
	require.ErrorIs(t, err, ErrResetTokenInvalid)
	require.Empty(t, st.tokens, "expired token must be purged on use")
}

func TestChangePassword(t *testing.T) {
	svc, dir, _, _ := newAuthFixture(t)

	err := svc.ChangePassword(t.Context(), "u1", "wrong old", "new password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(t.Context(), "u1", testPassword, "new password"))
	require.NoError(t, cryptox.VerifyPassword(dir.users["u1"].PasswordHash, "new password"))
}

func TestLogoutAndLogoutAll(t *testing.T) {
	svc, _, _, sessions := newAuthFixture(t)

	first, err := svc.Login(t.Context(), LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)
	_, err = svc.Login(t.Context(), LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)
	require.Len(t, sessions.sessions, 2)

	require.NoError(t, svc.Logout(t.Context(), first.SessionID))
	require.Len(t, sessions.sessions, 1)

	// Logging out an already-dead session is a no-op.
	require.NoError(t, svc.Logout(t.Context(), first.SessionID))

	n, err := svc.LogoutAll(t.Context(), "u1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, sessions.sessions)
}

func newTokenFixture(t *testing.T) (*AuthService, *fakeDirectory) {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	dir := &fakeDirectory{users: map[string]*directory.Profile{
		"u1": {
			ID:           "u1",
			Email:        "alice@example.com",
			PasswordHash: hash,
			Role:         "user",
			Status:       "active",
		},
	}}
	issuer := &TokenIssuer{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}
	svc := &AuthService{
		Directory: dir,
		Store:     newFakeAuthStore(),
		Issuer:    issuer,
		Tokens:    issuer,
		Audit:     nopAudit{},
	}
	return svc, dir
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, _ := newTokenFixture(t)

	creds, err := svc.Login(t.Context(), LoginRequest{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	require.Empty(t, creds.SessionID)
	require.NotNil(t, creds.Tokens)
	require.NotEmpty(t, creds.Tokens.AccessToken)
	require.NotEmpty(t, creds.Tokens.RefreshToken)
	require.NotEqual(t, creds.Tokens.AccessToken, creds.Tokens.RefreshToken)
}

func TestRefreshKeepsRefreshToken(t *testing.T) {
	svc, _ := newTokenFixture(t)

	creds, err := svc.Login(t.Context(), LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)

	pair, err := svc.Refresh(t.Context(), creds.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.Equal(t, creds.Tokens.RefreshToken, pair.RefreshToken)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _ := newTokenFixture(t)

	creds, err := svc.Login(t.Context(), LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)

	// An access token must not pass as a refresh token, even though both
	// are HMAC-signed JWTs.
	_, err = svc.Refresh(t.Context(), creds.Tokens.AccessToken)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshBlockedUser(t *testing.T) {
	svc, dir := newTokenFixture(t)

	creds, err := svc.Login(t.Context(), LoginRequest{Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)

	dir.users["u1"].Status = "blocked"
	_, err = svc.Refresh(t.Context(), creds.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrUserBlocked)
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, dir, _, _ := newAuthFixture(t)

	profile, err := svc.Register(t.Context(), RegisterRequest{
		Email:    "bob@example.com",
		Password: "some long password",
	})
	require.NoError(t, err)
	require.Empty(t, profile.PasswordHash, "hash must not leak in the response")

	stored := dir.users["u-bob@example.com"]
	require.NotEqual(t, "some long password", stored.PasswordHash)
	require.NoError(t, cryptox.VerifyPassword(stored.PasswordHash, "some long password"))
}
