package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer outcomes. A record exists for every attempt the ledger
// answered, whether or not money moved.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrTransferNotFound = errors.New("Transfer not found")
	ErrCardNotFound     = errors.New("Card not found")
	ErrNotYourCard      = errors.New("Not your card")
)

// Directions of a transfer relative to one participant's cards.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
)

// Transfer is one orchestrated payment attempt. Comment carries the
// ledger's refusal text on failure and is empty on success. CompletedAt
// is set only when money actually moved.
type Transfer struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"userId"`
	SenderCardNumber   string          `json:"senderCardNumber"`
	ReceiverCardNumber string          `json:"receiverCardNumber"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Status             string          `json:"status"`
	Comment            string          `json:"comment,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	CompletedAt        *time.Time      `json:"completedAt,omitempty"`
}

// HistoryEntry is a transfer seen from one participant's side: the raw
// record plus the computed direction and the caller's card involved.
type HistoryEntry struct {
	Transfer
	Type       string `json:"type"`
	CardNumber string `json:"cardNumber"`
}
