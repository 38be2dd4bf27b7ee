package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vaultra/cardbank/internal/platform/directory"
	"github.com/vaultra/cardbank/internal/verification/domain"
	"github.com/vaultra/cardbank/internal/verification/store"
	"github.com/vaultra/cardbank/pkg/idx"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrAlreadySubmitted = errors.New("verification already exists")
	ErrUnknownAction    = errors.New("unknown verification action")
)

// VerificationService tracks identity documents and feeds the
// transfer-authorization gate. Document file storage lives outside this
// service; only the review state is kept here.
type VerificationService struct {
	Store     store.Documents
	Directory directory.Directory
}

// Submit registers a pending document for review. A user with a pending
// or approved document cannot submit another one.
func (s *VerificationService) Submit(ctx context.Context, userID, documentType string) (domain.Document, error) {
	open, err := s.Store.HasOpenDocument(ctx, userID)
	if err != nil {
		return domain.Document{}, fmt.Errorf("check open documents: %w", err)
	}
	if open {
		return domain.Document{}, ErrAlreadySubmitted
	}

	d := domain.Document{
		ID:           idx.New().String(),
		UserID:       userID,
		DocumentType: documentType,
		Status:       domain.StatusPending,
	}
	if err := s.Store.CreateDocument(ctx, d); err != nil {
		return domain.Document{}, fmt.Errorf("create document: %w", err)
	}
	return d, nil
}

// Review approves or rejects a document. Approval activates the user in
// the directory, which in turn opens money-moving operations for them.
func (s *VerificationService) Review(ctx context.Context, documentID, action string) (domain.Document, error) {
	if action != "approve" && action != "reject" {
		return domain.Document{}, ErrUnknownAction
	}

	d, err := s.Store.GetDocumentByID(ctx, documentID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return domain.Document{}, err
	}

	status := domain.StatusRejected
	if action == "approve" {
		status = domain.StatusApproved
	}
	if err := s.Store.SetStatus(ctx, d.ID, status); err != nil {
		return domain.Document{}, fmt.Errorf("set document status: %w", err)
	}
	d.Status = status

	if status == domain.StatusApproved {
		if err := s.Directory.SetStatus(ctx, d.UserID, "active"); err != nil {
			return domain.Document{}, fmt.Errorf("activate user: %w", err)
		}
	}

	return d, nil
}

// Status reports the user's verification state; users with no document
// are simply not verified, which is not an error.
func (s *VerificationService) Status(ctx context.Context, userID string) (string, error) {
	d, err := s.Store.GetLatestByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.StatusNotVerified, nil
	}
	if err != nil {
		return "", err
	}
	return d.Status, nil
}
