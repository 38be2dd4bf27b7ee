// Package rpc exposes session validation to the guard middleware of the
// other services.
package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vaultra/cardbank/internal/auth/service"
	"github.com/vaultra/cardbank/pkg/rpcx"
)

func Register(srv *rpcx.Server, auth *service.AuthService) {
	srv.Handle("validate-session", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.SessionID == "" {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "missing sessionId")
		}

		sess, err := auth.ValidateSession(ctx, req.SessionID)
		if errors.Is(err, service.ErrSessionInvalid) {
			return nil, rpcx.NewError(rpcx.CodeUnauthorized, "Unauthorized")
		}
		if err != nil {
			return nil, err
		}
		return sess, nil
	})
}
