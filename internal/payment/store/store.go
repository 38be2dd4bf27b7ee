package store

import (
	"context"
	"errors"

	"github.com/vaultra/cardbank/internal/payment/domain"
)

var ErrNotFound = errors.New("store: not found")

// Transfers is the payment record archive. Records are append-only; the
// status is decided before insertion and never updated.
type Transfers interface {
	CreateTransfer(ctx context.Context, t domain.Transfer) error
	GetTransferByID(ctx context.Context, id string) (domain.Transfer, error)

	// ListForCards returns transfers touching any of the given card
	// numbers, newest first. Outgoing transfers are included regardless
	// of status; incoming ones only when completed. Money that never
	// arrived is not part of the receiver's history.
	ListForCards(ctx context.Context, cardNumbers []string) ([]domain.Transfer, error)

	// ListByCard returns every transfer touching one card, unfiltered.
	ListByCard(ctx context.Context, cardNumber string) ([]domain.Transfer, error)
}
