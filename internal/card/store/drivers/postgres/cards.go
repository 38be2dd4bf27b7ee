package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/vaultra/cardbank/internal/card/domain"
	"github.com/vaultra/cardbank/internal/card/store"
)

const cardColumns = `id, user_id, card_number, card_type, provider, status,
	balance, currency, expiration_date, cvv_hash, created_at, updated_at`

func (s *Store) CreateCard(ctx context.Context, c domain.Card) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, user_id, card_number, card_type, provider, status,
			balance, currency, expiration_date, cvv_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.UserID, c.CardNumber, c.CardType, c.Provider, c.Status,
		c.Balance, c.Currency, c.ExpirationDate, c.CVVHash,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return store.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetCardByID(ctx context.Context, id string) (domain.Card, error) {
	return s.getCard(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
}

func (s *Store) GetCardByNumber(ctx context.Context, number string) (domain.Card, error) {
	return s.getCard(ctx, `SELECT `+cardColumns+` FROM cards WHERE card_number = $1`, number)
}

func (s *Store) getCard(ctx context.Context, query string, arg any) (domain.Card, error) {
	var c domain.Card
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&c.ID, &c.UserID, &c.CardNumber, &c.CardType, &c.Provider, &c.Status,
		&c.Balance, &c.Currency, &c.ExpirationDate, &c.CVVHash, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Card{}, err
	}
	return c, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]domain.Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.CardNumber, &c.CardType, &c.Provider, &c.Status,
			&c.Balance, &c.Currency, &c.ExpirationDate, &c.CVVHash, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (s *Store) SetStatus(ctx context.Context, cardID, status string) (domain.Card, error) {
	var c domain.Card
	err := s.db.QueryRowContext(ctx, `
		UPDATE cards SET status = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+cardColumns,
		status, cardID,
	).Scan(
		&c.ID, &c.UserID, &c.CardNumber, &c.CardType, &c.Provider, &c.Status,
		&c.Balance, &c.Currency, &c.ExpirationDate, &c.CVVHash, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Card{}, err
	}
	return c, nil
}

// lockedCard is the subset of a card row read under FOR UPDATE.
type lockedCard struct {
	id       string
	userID   string
	balance  decimal.Decimal
	currency string
}

// Transfer moves amount between two card rows atomically. Both rows are
// taken with row-level exclusive locks in ascending id order. The lock
// order is a property of the pair, not of the transfer direction, so
// concurrent opposite-direction transfers on the same two cards queue
// behind each other instead of deadlocking.
func (s *Store) Transfer(ctx context.Context, senderCardID, receiverCardID string, amount decimal.Decimal, currency string) (store.TransferLegs, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.TransferLegs{}, fmt.Errorf("begin transfer tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	locked, err := lockCards(ctx, tx, senderCardID, receiverCardID)
	if err != nil {
		return store.TransferLegs{}, err
	}
	sender, ok := locked[senderCardID]
	if !ok {
		return store.TransferLegs{}, domain.ErrCardNotFound
	}
	receiver, ok := locked[receiverCardID]
	if !ok {
		return store.TransferLegs{}, domain.ErrCardNotFound
	}

	if sender.balance.LessThan(amount) {
		return store.TransferLegs{}, domain.ErrInsufficientFunds
	}
	if sender.currency != currency || receiver.currency != currency {
		return store.TransferLegs{}, domain.ErrCurrencyMismatch
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE cards SET balance = balance - $1, updated_at = now() WHERE id = $2`,
		amount, senderCardID,
	); err != nil {
		return store.TransferLegs{}, fmt.Errorf("debit sender: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE cards SET balance = balance + $1, updated_at = now() WHERE id = $2`,
		amount, receiverCardID,
	); err != nil {
		return store.TransferLegs{}, fmt.Errorf("credit receiver: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.TransferLegs{}, fmt.Errorf("commit transfer: %w", err)
	}

	return store.TransferLegs{
		SenderOwner:   sender.userID,
		ReceiverOwner: receiver.userID,
	}, nil
}

// lockCards takes exclusive locks on both rows in one statement, always
// in ascending id order. Rows that do not exist are simply absent from
// the result.
func lockCards(ctx context.Context, tx *sql.Tx, ids ...string) (map[string]lockedCard, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, user_id, balance, currency FROM cards
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("lock cards: %w", err)
	}
	defer rows.Close()

	locked := make(map[string]lockedCard, len(ids))
	for rows.Next() {
		var c lockedCard
		if err := rows.Scan(&c.id, &c.userID, &c.balance, &c.currency); err != nil {
			return nil, err
		}
		locked[c.id] = c
	}
	return locked, rows.Err()
}
