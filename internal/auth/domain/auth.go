package domain

import "time"

// TokenPair is the stateless credential form: a short-lived access token
// and a longer-lived refresh token, signed with distinct secrets.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is the stateful credential form, held in Redis and looked up
// on every guarded request.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// TwoFactorSecret is a TOTP secret. It stays unconfirmed, and does not
// gate logins, until the holder proves possession with a valid code.
type TwoFactorSecret struct {
	UserID    string
	Secret    string
	Confirmed bool
	CreatedAt time.Time
}

// PasswordResetToken is stored by fingerprint only; the raw token exists
// solely in the message delivered to the user.
type PasswordResetToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t PasswordResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
