// Package rpc exposes the history service's commands on the broker.
package rpc

import (
	"context"
	"encoding/json"

	"github.com/vaultra/cardbank/internal/history/service"
	"github.com/vaultra/cardbank/pkg/rpcx"
)

// Register wires the history handlers onto the server. history.log is
// published fire-and-forget by the other services; get-user-events is a
// normal request/response command.
func Register(srv *rpcx.Server, history *service.HistoryService) {
	srv.Handle("history.log", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var entry struct {
			UserID    string         `json:"userId"`
			EventType string         `json:"eventType"`
			Meta      map[string]any `json:"meta"`
		}
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "malformed history.log payload")
		}

		return history.LogEvent(ctx, entry.UserID, entry.EventType, entry.Meta)
	})

	srv.Handle("get-user-events", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var userID string
		if err := json.Unmarshal(payload, &userID); err != nil || userID == "" {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "missing user id")
		}

		return history.UserEvents(ctx, userID)
	})
}
