// Package authguard protects HTTP surfaces. It resolves the caller's
// identity from either a session cookie (validated against the auth
// service over the broker) or a signed bearer token, depending on how
// the deployment issues credentials.
package authguard

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vaultra/cardbank/pkg/httpx"
	"github.com/vaultra/cardbank/pkg/rpcx"
)

// SessionCookie is the cookie name set by the auth service in session mode.
const SessionCookie = "session_id"

var errUnauthorized = rpcx.NewError(rpcx.CodeUnauthorized, "Unauthorized")

// Guard resolves a request to an identity or fails with 401.
type Guard interface {
	Authenticate(r *http.Request) (httpx.Identity, error)
}

// Middleware runs the guard and stores the identity in the request context.
func Middleware(g Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.Authenticate(r)
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(httpx.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole gates a route to a single role. It assumes Middleware has
// already populated the identity.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := httpx.IdentityFrom(r.Context())
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			if id.Role != role {
				httpx.WriteError(w, rpcx.NewError(rpcx.CodeForbidden, "Forbidden"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionGuard validates the session cookie against the auth service.
type SessionGuard struct {
	Auth *rpcx.Client
}

func (g *SessionGuard) Authenticate(r *http.Request) (httpx.Identity, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return httpx.Identity{}, errUnauthorized
	}

	var session struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	err = g.Auth.Call(r.Context(), "validate-session", map[string]string{
		"sessionId": cookie.Value,
	}, &session)
	if err != nil {
		if rpcx.CodeOf(err) == rpcx.CodeUnauthorized {
			return httpx.Identity{}, errUnauthorized
		}
		return httpx.Identity{}, err
	}
	return httpx.Identity{UserID: session.UserID, Role: session.Role}, nil
}

// TokenGuard verifies a bearer access token locally, with no broker trip.
type TokenGuard struct {
	Secret []byte
}

func (g *TokenGuard) Authenticate(r *http.Request) (httpx.Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return httpx.Identity{}, errUnauthorized
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnauthorized
		}
		return g.Secret, nil
	})
	if err != nil || !token.Valid {
		return httpx.Identity{}, errUnauthorized
	}
	if typ, _ := claims["typ"].(string); typ != "access" {
		return httpx.Identity{}, errUnauthorized
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return httpx.Identity{}, errUnauthorized
	}
	return httpx.Identity{UserID: sub, Role: role}, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// ForMode picks the guard matching the auth service's credential mode.
func ForMode(mode string, auth *rpcx.Client, accessSecret string) Guard {
	if mode == "token" {
		return &TokenGuard{Secret: []byte(accessSecret)}
	}
	return &SessionGuard{Auth: auth}
}

// VerificationGuard additionally requires the caller to hold an approved
// identity verification. Used on money-moving routes.
type VerificationGuard struct {
	Verification *rpcx.Client
}

func (g *VerificationGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IdentityFrom(r.Context())
		if err != nil {
			httpx.WriteError(w, err)
			return
		}

		var status struct {
			Status string `json:"status"`
		}
		err = g.Verification.Call(r.Context(), "get-verification-status", map[string]string{
			"userId": id.UserID,
		}, &status)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		if status.Status != "approved" {
			httpx.WriteError(w, rpcx.NewError(rpcx.CodeForbidden, "Identity verification required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
