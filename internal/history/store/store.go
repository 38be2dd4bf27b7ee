package store

import (
	"context"

	"github.com/vaultra/cardbank/internal/history/domain"
)

// Events is the append-only audit log access interface.
type Events interface {
	Append(ctx context.Context, e domain.Event) error

	// ListByUser returns the user's events, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Event, error)

	// ListAll returns every event, newest first.
	ListAll(ctx context.Context) ([]domain.Event, error)
}
