package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vaultra/cardbank/internal/card/domain"
	"github.com/vaultra/cardbank/internal/card/store"
	"github.com/vaultra/cardbank/internal/platform/audit"
	"github.com/vaultra/cardbank/pkg/cryptox"
)

// fakeStore keeps cards in memory and moves balances without locking;
// the locking behaviour itself is covered by the driver's integration
// tests.
type fakeStore struct {
	cards map[string]*domain.Card
}

func newFakeStore() *fakeStore {
	return &fakeStore{cards: map[string]*domain.Card{}}
}

func (f *fakeStore) CreateCard(_ context.Context, c domain.Card) error {
	for _, existing := range f.cards {
		if existing.CardNumber == c.CardNumber {
			return store.ErrAlreadyExists
		}
	}
	f.cards[c.ID] = &c
	return nil
}

func (f *fakeStore) GetCardByID(_ context.Context, id string) (domain.Card, error) {
	c, ok := f.cards[id]
	if !ok {
		return domain.Card{}, store.ErrNotFound
	}
	return *c, nil
}

func (f *fakeStore) GetCardByNumber(_ context.Context, number string) (domain.Card, error) {
	for _, c := range f.cards {
		if c.CardNumber == number {
			return *c, nil
		}
	}
	return domain.Card{}, store.ErrNotFound
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]domain.Card, error) {
	var out []domain.Card
	for _, c := range f.cards {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) SetStatus(_ context.Context, cardID, status string) (domain.Card, error) {
	c, ok := f.cards[cardID]
	if !ok {
		return domain.Card{}, store.ErrNotFound
	}
	c.Status = status
	return *c, nil
}

func (f *fakeStore) Transfer(_ context.Context, senderID, receiverID string, amount decimal.Decimal, currency string) (store.TransferLegs, error) {
	sender, ok := f.cards[senderID]
	if !ok {
		return store.TransferLegs{}, domain.ErrCardNotFound
	}
	receiver, ok := f.cards[receiverID]
	if !ok {
		return store.TransferLegs{}, domain.ErrCardNotFound
	}
	if sender.Balance.LessThan(amount) {
		return store.TransferLegs{}, domain.ErrInsufficientFunds
	}
	if sender.Currency != currency || receiver.Currency != currency {
		return store.TransferLegs{}, domain.ErrCurrencyMismatch
	}
	sender.Balance = sender.Balance.Sub(amount)
	receiver.Balance = receiver.Balance.Add(amount)
	return store.TransferLegs{SenderOwner: sender.UserID, ReceiverOwner: receiver.UserID}, nil
}

// recordingAudit captures emitted events for assertions.
type recordingAudit struct {
	events []string
}

func (r *recordingAudit) Record(_ context.Context, _ string, eventType string, _ map[string]any) {
	r.events = append(r.events, eventType)
}

func newService() (*CardService, *fakeStore, *recordingAudit) {
	st := newFakeStore()
	au := &recordingAudit{}
	return &CardService{Store: st, Audit: au}, st, au
}

func TestOpenIssuesValidCard(t *testing.T) {
	svc, _, _ := newService()

	opened, err := svc.Open(t.Context(), "user-1", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)

	card := opened.Card
	require.Equal(t, "user-1", card.UserID)
	require.Equal(t, domain.StatusActive, card.Status)
	require.True(t, card.Balance.IsZero())
	require.Len(t, card.CardNumber, 16)
	require.True(t, luhnValid(card.CardNumber), "card number must pass Luhn")
	require.Equal(t, "400000", card.CardNumber[:6])

	// The CVV is returned in plaintext once and stored only as a hash.
	require.Len(t, opened.CVV, 3)
	require.NoError(t, cryptox.VerifyPassword(card.CVVHash, opened.CVV))
}

func TestOpenMastercardPrefix(t *testing.T) {
	svc, _, _ := newService()

	opened, err := svc.Open(t.Context(), "user-1", domain.TypeCredit, domain.ProviderMastercard, "EUR")
	require.NoError(t, err)

	prefix := opened.Card.CardNumber[:6]
	require.Contains(t, []string{"510000", "220000"}, prefix)
	require.True(t, luhnValid(opened.Card.CardNumber))
}

func TestOpenRejectsUnknownTypeAndProvider(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Open(t.Context(), "user-1", "prepaid", domain.ProviderVisa, "USD")
	require.ErrorIs(t, err, ErrInvalidCardType)

	_, err = svc.Open(t.Context(), "user-1", domain.TypeDebit, "amex", "USD")
	require.ErrorIs(t, err, ErrInvalidProvider)
}

func TestBlockAndUnblock(t *testing.T) {
	svc, _, au := newService()

	opened, err := svc.Open(t.Context(), "user-1", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)

	blocked, err := svc.Block(t.Context(), "user-1", opened.Card.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusBlocked, blocked.Status)

	active, err := svc.Unblock(t.Context(), "user-1", opened.Card.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, active.Status)

	require.Contains(t, au.events, audit.EventCardBlock)
	require.Contains(t, au.events, audit.EventCardUnblock)
}

func TestBlockRejectsNonOwner(t *testing.T) {
	svc, _, _ := newService()

	opened, err := svc.Open(t.Context(), "user-1", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)

	_, err = svc.Block(t.Context(), "user-2", opened.Card.ID)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestCloseRequiresZeroBalance(t *testing.T) {
	svc, st, _ := newService()

	opened, err := svc.Open(t.Context(), "user-1", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)

	st.cards[opened.Card.ID].Balance = decimal.NewFromInt(10)
	_, err = svc.Close(t.Context(), "user-1", opened.Card.ID)
	require.ErrorIs(t, err, domain.ErrNonZeroBalance)

	st.cards[opened.Card.ID].Balance = decimal.Zero
	closed, err := svc.Close(t.Context(), "user-1", opened.Card.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusClosed, closed.Status)

	// Closed is terminal.
	_, err = svc.Unblock(t.Context(), "user-1", opened.Card.ID)
	require.ErrorIs(t, err, domain.ErrCardClosed)
}

func TestTransferMovesFundsAndAuditsBothLegs(t *testing.T) {
	svc, st, au := newService()

	a, err := svc.Open(t.Context(), "alice", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)
	b, err := svc.Open(t.Context(), "bob", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)

	st.cards[a.Card.ID].Balance = decimal.NewFromInt(100)

	err = svc.Transfer(t.Context(), a.Card.ID, b.Card.ID, decimal.NewFromFloat(25.50), "USD")
	require.NoError(t, err)

	require.True(t, st.cards[a.Card.ID].Balance.Equal(decimal.NewFromFloat(74.50)))
	require.True(t, st.cards[b.Card.ID].Balance.Equal(decimal.NewFromFloat(25.50)))

	// One audit leg per affected holder.
	count := 0
	for _, e := range au.events {
		if e == audit.EventTransfer {
			count++
		}
	}
	require.Equal(t, 2, count)
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newService()

	err := svc.Transfer(t.Context(), "x", "y", decimal.Zero, "USD")
	require.ErrorIs(t, err, ErrInvalidAmount)

	err = svc.Transfer(t.Context(), "x", "y", decimal.NewFromInt(-5), "USD")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestTransferRejectsInactiveCards(t *testing.T) {
	svc, st, _ := newService()

	a, err := svc.Open(t.Context(), "alice", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)
	b, err := svc.Open(t.Context(), "bob", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)

	st.cards[a.Card.ID].Balance = decimal.NewFromInt(100)
	st.cards[b.Card.ID].Status = domain.StatusBlocked

	err = svc.Transfer(t.Context(), a.Card.ID, b.Card.ID, decimal.NewFromInt(1), "USD")
	require.ErrorIs(t, err, domain.ErrCardClosed)
}

func TestTransferBusinessErrors(t *testing.T) {
	svc, st, _ := newService()

	a, err := svc.Open(t.Context(), "alice", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)
	b, err := svc.Open(t.Context(), "bob", domain.TypeDebit, domain.ProviderVisa, "USD")
	require.NoError(t, err)

	err = svc.Transfer(t.Context(), a.Card.ID, "no-such-id", decimal.NewFromInt(1), "USD")
	require.ErrorIs(t, err, domain.ErrCardNotFound)

	err = svc.Transfer(t.Context(), a.Card.ID, b.Card.ID, decimal.NewFromInt(1), "USD")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	st.cards[a.Card.ID].Balance = decimal.NewFromInt(100)
	err = svc.Transfer(t.Context(), a.Card.ID, b.Card.ID, decimal.NewFromInt(1), "EUR")
	require.ErrorIs(t, err, domain.ErrCurrencyMismatch)
}

func TestLuhnCheckDigit(t *testing.T) {
	// 4539 1488 0343 6467 is a classic valid Luhn number.
	require.True(t, luhnValid("4539148803436467"))
	require.False(t, luhnValid("4539148803436468"))
	require.False(t, luhnValid("4539x48803436467"))
}
