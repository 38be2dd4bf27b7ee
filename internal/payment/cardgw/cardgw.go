// Package cardgw is the payment service's view of the card ledger,
// reached over the broker.
package cardgw

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vaultra/cardbank/pkg/rpcx"
)

// Card is the subset of the ledger's card the orchestrator needs.
type Card struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	CardNumber string `json:"cardNumber"`
	Status     string `json:"status"`
	Currency   string `json:"currency"`
}

// Outcome is the ledger's answer to a transfer command. Refused reports
// business rule violations; those arrive as a normal reply, distinct
// from transport failures which surface as errors.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Gateway talks to the card service.
type Gateway interface {
	// FindCard returns nil when no card carries the number.
	FindCard(ctx context.Context, cardNumber string) (*Card, error)
	CardsByUser(ctx context.Context, userID string) ([]Card, error)
	// Transfer takes resolved card ids. It returns a non-nil Outcome when
	// the ledger answered, or an error when the command never completed
	// (timeout, broker failure).
	Transfer(ctx context.Context, senderID, receiverID string, amount decimal.Decimal, currency string) (Outcome, error)
}

// Client implements Gateway over rpcx.
type Client struct {
	rpc *rpcx.Client
}

func NewClient(rpc *rpcx.Client) *Client {
	return &Client{rpc: rpc}
}

func (c *Client) FindCard(ctx context.Context, cardNumber string) (*Card, error) {
	var card *Card
	err := c.rpc.Call(ctx, "get-card-by-number", map[string]string{
		"cardNumber": cardNumber,
	}, &card)
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (c *Client) CardsByUser(ctx context.Context, userID string) ([]Card, error) {
	var cards []Card
	err := c.rpc.Call(ctx, "get-cards-by-user", map[string]string{
		"userId": userID,
	}, &cards)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (c *Client) Transfer(ctx context.Context, senderID, receiverID string, amount decimal.Decimal, currency string) (Outcome, error) {
	req := struct {
		SenderCardID   string          `json:"senderCardId"`
		ReceiverCardID string          `json:"receiverCardId"`
		Amount         decimal.Decimal `json:"amount"`
		Currency       string          `json:"currency"`
	}{senderID, receiverID, amount, currency}

	var out Outcome
	if err := c.rpc.Call(ctx, "transfer", req, &out); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

var _ Gateway = (*Client)(nil)
