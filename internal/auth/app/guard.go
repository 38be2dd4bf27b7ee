package app

import (
	"net/http"

	"github.com/vaultra/cardbank/internal/auth/service"
	"github.com/vaultra/cardbank/internal/platform/authguard"
	"github.com/vaultra/cardbank/pkg/httpx"
	"github.com/vaultra/cardbank/pkg/rpcx"
)

// sessionSelfGuard validates session cookies against the local session
// store. The auth service guards its own routes without a broker round
// trip.
type sessionSelfGuard struct {
	auth *service.AuthService
}

func (g *sessionSelfGuard) Authenticate(r *http.Request) (httpx.Identity, error) {
	cookie, err := r.Cookie(authguard.SessionCookie)
	if err != nil || cookie.Value == "" {
		return httpx.Identity{}, rpcx.NewError(rpcx.CodeUnauthorized, "Unauthorized")
	}
	sess, err := g.auth.ValidateSession(r.Context(), cookie.Value)
	if err != nil {
		return httpx.Identity{}, rpcx.NewError(rpcx.CodeUnauthorized, "Unauthorized")
	}
	return httpx.Identity{UserID: sess.UserID, Role: sess.Role}, nil
}

var _ authguard.Guard = (*sessionSelfGuard)(nil)
