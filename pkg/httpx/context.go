package httpx

import (
	"context"
	"net/http"

	"github.com/vaultra/cardbank/pkg/rpcx"
)

// Identity is the authenticated caller attached to a request by a guard.
type Identity struct {
	UserID string
	Role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the authenticated identity, or an Unauthorized
// error when the request passed no guard.
func IdentityFrom(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, rpcx.NewError(rpcx.CodeUnauthorized, "not authenticated")
	}
	return id, nil
}

// MustIdentity is for handlers behind a guard, where a missing identity is
// a programming error rather than a client fault.
func MustIdentity(r *http.Request) Identity {
	id, _ := r.Context().Value(identityKey{}).(Identity)
	return id
}
