package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vaultra/cardbank/internal/card/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// TransferLegs identifies the owners on each side of a completed
// mutation, so the service can audit both legs after commit.
type TransferLegs struct {
	SenderOwner   string
	ReceiverOwner string
}

// Cards is the ledger's data access interface. The card store is the
// sole mutator of balances.
type Cards interface {
	CreateCard(ctx context.Context, c domain.Card) error

	GetCardByID(ctx context.Context, id string) (domain.Card, error)
	GetCardByNumber(ctx context.Context, number string) (domain.Card, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Card, error)

	SetStatus(ctx context.Context, cardID, status string) (domain.Card, error)

	// Transfer is the locked-pair mutation: within one transaction it
	// locks the sender row then the receiver row (always in that order),
	// validates funds and currency, and moves the amount. Business rule
	// violations are returned as the domain sentinel errors with no
	// balance changed.
	Transfer(ctx context.Context, senderCardID, receiverCardID string, amount decimal.Decimal, currency string) (TransferLegs, error)
}
