package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Card statuses. Closed is terminal.
const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
	StatusClosed  = "closed"
)

// Card types and providers.
const (
	TypeDebit  = "debit"
	TypeCredit = "credit"

	ProviderVisa       = "visa"
	ProviderMastercard = "mastercard"
)

// Business rule violations of the ledger. These travel typed through the
// RPC boundary so the payment service can record them honestly.
var (
	ErrCardNotFound      = errors.New("Card not found")
	ErrInsufficientFunds = errors.New("Insufficient funds")
	ErrCurrencyMismatch  = errors.New("Currency mismatch")
	ErrNonZeroBalance    = errors.New("Cannot close card with non-zero balance")
	ErrCardClosed        = errors.New("Card is closed")
)

// Card is a ledger row. Balance is an exact decimal and is mutated only
// through the store's transfer primitive or explicit admin operations.
type Card struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	CardNumber     string          `json:"cardNumber"`
	CardType       string          `json:"cardType"`
	Provider       string          `json:"provider"`
	Status         string          `json:"status"`
	Balance        decimal.Decimal `json:"balance"`
	Currency       string          `json:"currency"`
	ExpirationDate time.Time       `json:"expirationDate"`
	CVVHash        string          `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
