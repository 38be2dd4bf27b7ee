// Package rpc exposes the ledger's command surface on the broker. The
// transfer command is consumed by the payment service.
package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vaultra/cardbank/internal/card/domain"
	"github.com/vaultra/cardbank/internal/card/service"
	"github.com/vaultra/cardbank/pkg/rpcx"
)

// transferReply reports the ledger outcome to the orchestrator. Business
// rule violations are an expected answer, so they ride in the reply body
// as success=false rather than in the error envelope; the orchestrator
// persists them verbatim.
type transferReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func Register(srv *rpcx.Server, cards *service.CardService) {
	srv.Handle("get-card-by-number", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var q struct {
			CardNumber string `json:"cardNumber"`
		}
		if err := json.Unmarshal(payload, &q); err != nil || q.CardNumber == "" {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "missing cardNumber")
		}

		card, err := cards.GetByNumber(ctx, q.CardNumber)
		if errors.Is(err, domain.ErrCardNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return card, nil
	})

	srv.Handle("get-cards-by-user", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var q struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(payload, &q); err != nil || q.UserID == "" {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "missing userId")
		}
		list, err := cards.ListByUser(ctx, q.UserID)
		if err != nil {
			return nil, err
		}
		if list == nil {
			list = []domain.Card{}
		}
		return list, nil
	})

	srv.Handle("transfer", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SenderCardID   string          `json:"senderCardId"`
			ReceiverCardID string          `json:"receiverCardId"`
			Amount         decimal.Decimal `json:"amount"`
			Currency       string          `json:"currency"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "malformed transfer payload")
		}

		err := cards.Transfer(ctx, req.SenderCardID, req.ReceiverCardID, req.Amount, req.Currency)
		if isBusinessError(err) {
			return transferReply{Success: false, Error: err.Error()}, nil
		}
		if err != nil {
			return nil, err
		}
		return transferReply{Success: true}, nil
	})
}

func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrCardNotFound) ||
		errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrCurrencyMismatch) ||
		errors.Is(err, domain.ErrCardClosed) ||
		errors.Is(err, service.ErrInvalidAmount)
}
