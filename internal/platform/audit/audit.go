// Package audit is the client side of the append-only history log. Every
// service records its domain events here; emission is fire-and-forget and
// must never abort the operation it describes.
package audit

import (
	"context"
	"log/slog"

	"github.com/vaultra/cardbank/pkg/rpcx"
)

// Event types understood by the history service.
const (
	EventRegister       = "REGISTER"
	EventLogin          = "LOGIN"
	EventLogout         = "LOGOUT"
	EventLogoutAll      = "LOGOUT_ALL"
	EventPasswordChange = "PASSWORD_CHANGE"
	EventTransfer       = "TRANSFER"
	EventCardBlock      = "CARD_BLOCK"
	EventCardUnblock    = "CARD_UNBLOCK"
	EventCardClose      = "CARD_CLOSE"
	EventAdminAction    = "ADMIN_ACTION"
)

// Entry is the payload of the history.log command.
type Entry struct {
	UserID    string         `json:"userId"`
	EventType string         `json:"eventType"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Recorder appends events to the audit sink.
type Recorder interface {
	// Record is best-effort: implementations log failures and move on.
	Record(ctx context.Context, userID, eventType string, meta map[string]any)
}

// Client records events over the broker to the history service queue.
type Client struct {
	rpc    *rpcx.Client
	logger *slog.Logger
}

func NewClient(rpc *rpcx.Client, logger *slog.Logger) *Client {
	return &Client{rpc: rpc, logger: logger}
}

func (c *Client) Record(ctx context.Context, userID, eventType string, meta map[string]any) {
	err := c.rpc.Notify(ctx, "history.log", Entry{
		UserID:    userID,
		EventType: eventType,
		Meta:      meta,
	})
	if err != nil {
		c.logger.Warn("audit event dropped",
			"event_type", eventType,
			"user_id", userID,
			"error", err,
		)
	}
}

// Nop discards every event. Used in tests.
type Nop struct{}

func (Nop) Record(context.Context, string, string, map[string]any) {}
