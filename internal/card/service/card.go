// Package service implements the card ledger operations: issuing cards,
// lifecycle transitions and the atomic balance transfer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vaultra/cardbank/internal/card/domain"
	"github.com/vaultra/cardbank/internal/card/store"
	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/pkg/cryptox"
	"github.com/vaultra/cardbank/pkg/idx"
)

var (
	ErrInvalidCardType = errors.New("invalid card type")
	ErrInvalidProvider = errors.New("invalid card provider")
	ErrInvalidAmount   = errors.New("transfer amount must be positive")
	ErrNotOwner        = errors.New("Not your card")
)

const (
	cardValidityYears = 4
	cvvDigits         = 3

	// Retries when a generated card number collides with an existing one.
	numberRetries = 3
)

type CardService struct {
	Store store.Cards
	Audit audit.Recorder
}

// OpenedCard carries the plaintext CVV alongside the stored card. The CVV
// is shown to the holder exactly once; only its bcrypt hash persists.
type OpenedCard struct {
	Card domain.Card
	CVV  string
}

func (s *CardService) Open(ctx context.Context, userID, cardType, provider, currency string) (OpenedCard, error) {
	switch cardType {
	case domain.TypeDebit, domain.TypeCredit:
	default:
		return OpenedCard{}, ErrInvalidCardType
	}
	switch provider {
	case domain.ProviderVisa, domain.ProviderMastercard:
	default:
		return OpenedCard{}, ErrInvalidProvider
	}

	cvv, err := cryptox.GenerateDigits(cvvDigits)
	if err != nil {
		return OpenedCard{}, fmt.Errorf("generate cvv: %w", err)
	}
	cvvHash, err := cryptox.HashPassword(cvv)
	if err != nil {
		return OpenedCard{}, fmt.Errorf("hash cvv: %w", err)
	}

	card := domain.Card{
		ID:             idx.New().String(),
		UserID:         userID,
		CardType:       cardType,
		Provider:       provider,
		Status:         domain.StatusActive,
		Balance:        decimal.Zero,
		Currency:       currency,
		ExpirationDate: time.Now().UTC().AddDate(cardValidityYears, 0, 0),
		CVVHash:        cvvHash,
	}

	for attempt := 0; ; attempt++ {
		card.CardNumber, err = generateCardNumber(provider)
		if err != nil {
			return OpenedCard{}, err
		}
		err = s.Store.CreateCard(ctx, card)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrAlreadyExists) && attempt < numberRetries {
			continue
		}
		return OpenedCard{}, fmt.Errorf("create card: %w", err)
	}

	return OpenedCard{Card: card, CVV: cvv}, nil
}

func (s *CardService) Get(ctx context.Context, cardID string) (domain.Card, error) {
	c, err := s.Store.GetCardByID(ctx, cardID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return c, err
}

func (s *CardService) GetByNumber(ctx context.Context, number string) (domain.Card, error) {
	c, err := s.Store.GetCardByNumber(ctx, number)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return c, err
}

func (s *CardService) ListByUser(ctx context.Context, userID string) ([]domain.Card, error) {
	return s.Store.ListByUser(ctx, userID)
}

// Block suspends an active card. The actor must own the card.
func (s *CardService) Block(ctx context.Context, actorID, cardID string) (domain.Card, error) {
	card, err := s.ownedCard(ctx, actorID, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	if card.Status == domain.StatusClosed {
		return domain.Card{}, domain.ErrCardClosed
	}

	updated, err := s.Store.SetStatus(ctx, cardID, domain.StatusBlocked)
	if err != nil {
		return domain.Card{}, fmt.Errorf("block card: %w", err)
	}
	s.Audit.Record(ctx, actorID, audit.EventCardBlock, map[string]any{"cardId": cardID})
	return updated, nil
}

func (s *CardService) Unblock(ctx context.Context, actorID, cardID string) (domain.Card, error) {
	card, err := s.ownedCard(ctx, actorID, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	if card.Status == domain.StatusClosed {
		return domain.Card{}, domain.ErrCardClosed
	}

	updated, err := s.Store.SetStatus(ctx, cardID, domain.StatusActive)
	if err != nil {
		return domain.Card{}, fmt.Errorf("unblock card: %w", err)
	}
	s.Audit.Record(ctx, actorID, audit.EventCardUnblock, map[string]any{"cardId": cardID})
	return updated, nil
}

// Close retires a card permanently. Only cards with a zero balance can be
// closed; the holder must move remaining funds off first.
func (s *CardService) Close(ctx context.Context, actorID, cardID string) (domain.Card, error) {
	card, err := s.ownedCard(ctx, actorID, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	if card.Status == domain.StatusClosed {
		return domain.Card{}, domain.ErrCardClosed
	}
	if !card.Balance.IsZero() {
		return domain.Card{}, domain.ErrNonZeroBalance
	}

	updated, err := s.Store.SetStatus(ctx, cardID, domain.StatusClosed)
	if err != nil {
		return domain.Card{}, fmt.Errorf("close card: %w", err)
	}
	s.Audit.Record(ctx, actorID, audit.EventCardClose, map[string]any{"cardId": cardID})
	return updated, nil
}

// Transfer moves amount between two cards identified by id. Callers
// resolve numbers to ids first; the balance mutation itself runs inside
// a single database transaction in the store. One audit leg is emitted
// per affected holder after the commit.
func (s *CardService) Transfer(ctx context.Context, senderID, receiverID string, amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	sender, err := s.Get(ctx, senderID)
	if err != nil {
		return err
	}
	receiver, err := s.Get(ctx, receiverID)
	if err != nil {
		return err
	}
	if sender.Status != domain.StatusActive || receiver.Status != domain.StatusActive {
		return domain.ErrCardClosed
	}

	legs, err := s.Store.Transfer(ctx, sender.ID, receiver.ID, amount, currency)
	if err != nil {
		return err
	}

	meta := map[string]any{
		"amount":   amount.String(),
		"currency": currency,
	}
	s.Audit.Record(ctx, legs.SenderOwner, audit.EventTransfer, withDirection(meta, "out", receiver.CardNumber))
	s.Audit.Record(ctx, legs.ReceiverOwner, audit.EventTransfer, withDirection(meta, "in", sender.CardNumber))
	return nil
}

func withDirection(base map[string]any, direction, counterparty string) map[string]any {
	m := make(map[string]any, len(base)+2)
	for k, v := range base {
		m[k] = v
	}
	m["direction"] = direction
	m["counterparty"] = counterparty
	return m
}

func (s *CardService) ownedCard(ctx context.Context, actorID, cardID string) (domain.Card, error) {
	card, err := s.Get(ctx, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	if card.UserID != actorID {
		return domain.Card{}, ErrNotOwner
	}
	return card, nil
}
