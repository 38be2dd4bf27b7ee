// Package service orchestrates transfers between the card ledger and the
// payment archive. The ledger owns balances; this layer owns the
// historical record of every attempt the ledger answered.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vaultra/cardbank/internal/payment/cardgw"
	"github.com/vaultra/cardbank/internal/payment/domain"
	"github.com/vaultra/cardbank/internal/payment/store"
	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/pkg/idx"
)

var ErrInvalidAmount = errors.New("transfer amount must be positive")

type PaymentService struct {
	Store store.Transfers
	Cards cardgw.Gateway
	Audit audit.Recorder
}

type TransferRequest struct {
	SenderCardNumber   string
	ReceiverCardNumber string
	Amount             decimal.Decimal
	Currency           string
}

// Transfer runs one payment attempt end to end. Both card numbers are
// resolved to ledger rows before anything else; a missing card aborts
// with no record. Exactly one record is written whenever the ledger
// answers, and a refusal is a normal result carrying status failed, not
// an error. When the command never completes (broker down, timeout) no
// record is written: the ledger's word on whether money moved is
// unknown, so the attempt is flagged to the audit log and the error
// goes back to the caller.
func (s *PaymentService) Transfer(ctx context.Context, userID string, req TransferRequest) (domain.Transfer, error) {
	if !req.Amount.IsPositive() {
		return domain.Transfer{}, ErrInvalidAmount
	}

	sender, err := s.Cards.FindCard(ctx, req.SenderCardNumber)
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("resolve sender card: %w", err)
	}
	receiver, err := s.Cards.FindCard(ctx, req.ReceiverCardNumber)
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("resolve receiver card: %w", err)
	}
	if sender == nil || receiver == nil {
		return domain.Transfer{}, domain.ErrCardNotFound
	}
	if sender.UserID != userID {
		return domain.Transfer{}, domain.ErrNotYourCard
	}

	outcome, err := s.Cards.Transfer(ctx, sender.ID, receiver.ID, req.Amount, req.Currency)
	if err != nil {
		s.Audit.Record(ctx, userID, audit.EventAdminAction, map[string]any{
			"action":             "payment.transfer.failed",
			"senderCardNumber":   sender.CardNumber,
			"receiverCardNumber": receiver.CardNumber,
			"amount":             req.Amount.String(),
			"error":              err.Error(),
		})
		return domain.Transfer{}, err
	}

	record := domain.Transfer{
		ID:                 idx.New().String(),
		UserID:             userID,
		SenderCardNumber:   sender.CardNumber,
		ReceiverCardNumber: receiver.CardNumber,
		Amount:             req.Amount,
		Currency:           req.Currency,
		CreatedAt:          time.Now().UTC(),
	}
	if outcome.Success {
		record.Status = domain.StatusCompleted
		completedAt := record.CreatedAt
		record.CompletedAt = &completedAt
	} else {
		record.Status = domain.StatusFailed
		record.Comment = outcome.Error
		if record.Comment == "" {
			record.Comment = "Unknown error"
		}
	}

	if err := s.Store.CreateTransfer(ctx, record); err != nil {
		return domain.Transfer{}, fmt.Errorf("archive transfer: %w", err)
	}

	s.Audit.Record(ctx, userID, audit.EventTransfer, map[string]any{
		"transferId": record.ID,
		"status":     record.Status,
	})
	return record, nil
}

// History returns the caller's transfer feed across all their cards,
// each entry annotated with its direction and the caller's card.
// Outgoing attempts appear whatever their outcome; incoming ones only
// when the money arrived.
func (s *PaymentService) History(ctx context.Context, userID string) ([]domain.HistoryEntry, error) {
	numbers, err := s.cardNumbers(ctx, userID)
	if err != nil {
		return nil, err
	}
	transfers, err := s.Store.ListForCards(ctx, numbers)
	if err != nil {
		return nil, err
	}

	owned := numberSet(numbers)
	entries := make([]domain.HistoryEntry, 0, len(transfers))
	for _, t := range transfers {
		entries = append(entries, annotate(t, owned))
	}
	return entries, nil
}

// HistoryByCard returns every transfer touching one owned card,
// including failed incoming attempts. The per-card view is a statement,
// not a feed, so nothing is filtered.
func (s *PaymentService) HistoryByCard(ctx context.Context, userID, cardNumber string) ([]domain.HistoryEntry, error) {
	card, err := s.Cards.FindCard(ctx, cardNumber)
	if err != nil {
		return nil, fmt.Errorf("resolve card: %w", err)
	}
	if card == nil {
		return nil, domain.ErrCardNotFound
	}
	if card.UserID != userID {
		return nil, domain.ErrNotYourCard
	}

	transfers, err := s.Store.ListByCard(ctx, cardNumber)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(transfers))
	for _, t := range transfers {
		e := domain.HistoryEntry{Transfer: t, Type: domain.DirectionIncoming, CardNumber: cardNumber}
		if t.SenderCardNumber == cardNumber {
			e.Type = domain.DirectionOutgoing
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetByID returns one transfer record, annotated with direction, to a
// participant on either side.
func (s *PaymentService) GetByID(ctx context.Context, userID, transferID string) (domain.HistoryEntry, error) {
	t, err := s.Store.GetTransferByID(ctx, transferID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.HistoryEntry{}, domain.ErrTransferNotFound
	}
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	numbers, err := s.cardNumbers(ctx, userID)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	owned := numberSet(numbers)
	if !owned[t.SenderCardNumber] && !owned[t.ReceiverCardNumber] {
		return domain.HistoryEntry{}, domain.ErrNotYourCard
	}
	return annotate(t, owned), nil
}

// annotate views a transfer from the side of the owned cards. When both
// sides are owned the sender side wins and the entry reads outgoing.
func annotate(t domain.Transfer, owned map[string]bool) domain.HistoryEntry {
	if owned[t.SenderCardNumber] {
		return domain.HistoryEntry{Transfer: t, Type: domain.DirectionOutgoing, CardNumber: t.SenderCardNumber}
	}
	return domain.HistoryEntry{Transfer: t, Type: domain.DirectionIncoming, CardNumber: t.ReceiverCardNumber}
}

func numberSet(numbers []string) map[string]bool {
	set := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		set[n] = true
	}
	return set
}

func (s *PaymentService) cardNumbers(ctx context.Context, userID string) ([]string, error) {
	cards, err := s.Cards.CardsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	numbers := make([]string, 0, len(cards))
	for _, c := range cards {
		numbers = append(numbers, c.CardNumber)
	}
	return numbers, nil
}
