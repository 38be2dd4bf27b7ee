package store

import (
	"context"
	"errors"

	"github.com/vaultra/cardbank/internal/verification/domain"
)

var ErrNotFound = errors.New("store: not found")

// Documents is the verification data access interface.
type Documents interface {
	CreateDocument(ctx context.Context, d domain.Document) error

	GetDocumentByID(ctx context.Context, id string) (domain.Document, error)

	// GetLatestByUser returns the user's most recent document.
	GetLatestByUser(ctx context.Context, userID string) (domain.Document, error)

	// HasOpenDocument reports whether the user already has a pending or
	// approved document.
	HasOpenDocument(ctx context.Context, userID string) (bool, error)

	SetStatus(ctx context.Context, id, status string) error
}
