package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/vaultra/cardbank/internal/payment/domain"
	"github.com/vaultra/cardbank/internal/payment/store"
)

const transferColumns = `id, user_id, sender_card_number, receiver_card_number,
	amount, currency, status, comment, created_at, completed_at`

func (s *Store) CreateTransfer(ctx context.Context, t domain.Transfer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers (id, user_id, sender_card_number, receiver_card_number,
			amount, currency, status, comment, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, t.SenderCardNumber, t.ReceiverCardNumber,
		t.Amount, t.Currency, t.Status, t.Comment, t.CompletedAt,
	)
	return err
}

func (s *Store) GetTransferByID(ctx context.Context, id string) (domain.Transfer, error) {
	var t domain.Transfer
	err := s.db.QueryRowContext(ctx, `
		SELECT `+transferColumns+` FROM transfers WHERE id = $1`,
		id,
	).Scan(
		&t.ID, &t.UserID, &t.SenderCardNumber, &t.ReceiverCardNumber,
		&t.Amount, &t.Currency, &t.Status, &t.Comment, &t.CreatedAt, &t.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transfer{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Transfer{}, err
	}
	return t, nil
}

func (s *Store) ListForCards(ctx context.Context, cardNumbers []string) ([]domain.Transfer, error) {
	if len(cardNumbers) == 0 {
		return nil, nil
	}
	return s.list(ctx, `
		SELECT `+transferColumns+` FROM transfers
		WHERE sender_card_number = ANY($1)
		   OR (receiver_card_number = ANY($1) AND status = 'completed')
		ORDER BY created_at DESC`,
		pq.Array(cardNumbers),
	)
}

func (s *Store) ListByCard(ctx context.Context, cardNumber string) ([]domain.Transfer, error) {
	return s.list(ctx, `
		SELECT `+transferColumns+` FROM transfers
		WHERE sender_card_number = $1 OR receiver_card_number = $1
		ORDER BY created_at DESC`,
		cardNumber,
	)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]domain.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.SenderCardNumber, &t.ReceiverCardNumber,
			&t.Amount, &t.Currency, &t.Status, &t.Comment, &t.CreatedAt, &t.CompletedAt,
		); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
