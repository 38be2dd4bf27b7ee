package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vaultra/cardbank/internal/platform/directory"
	"github.com/vaultra/cardbank/internal/verification/domain"
	"github.com/vaultra/cardbank/internal/verification/store"
)

type fakeDocuments struct {
	docs map[string]*domain.Document
}

func (f *fakeDocuments) CreateDocument(_ context.Context, d domain.Document) error {
	f.docs[d.ID] = &d
	return nil
}

func (f *fakeDocuments) GetDocumentByID(_ context.Context, id string) (domain.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return domain.Document{}, store.ErrNotFound
	}
	return *d, nil
}

func (f *fakeDocuments) GetLatestByUser(_ context.Context, userID string) (domain.Document, error) {
	var latest *domain.Document
	for _, d := range f.docs {
		if d.UserID == userID {
			latest = d
		}
	}
	if latest == nil {
		return domain.Document{}, store.ErrNotFound
	}
	return *latest, nil
}

func (f *fakeDocuments) HasOpenDocument(_ context.Context, userID string) (bool, error) {
	for _, d := range f.docs {
		if d.UserID == userID && (d.Status == domain.StatusPending || d.Status == domain.StatusApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDocuments) SetStatus(_ context.Context, id, status string) error {
	d, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	d.Status = status
	return nil
}

// statusDirectory records SetStatus calls; everything else is unused by
// the verification service.
type statusDirectory struct {
	statuses map[string]string
}

func (d *statusDirectory) Find(context.Context, directory.FindQuery) (*directory.Profile, error) {
	return nil, nil
}

func (d *statusDirectory) Create(context.Context, directory.NewProfile) (*directory.Profile, error) {
	return nil, nil
}

func (d *statusDirectory) UpdatePassword(context.Context, string, string) error { return nil }

func (d *statusDirectory) SetTwoFactor(context.Context, string, bool) error { return nil }

func (d *statusDirectory) SetStatus(_ context.Context, userID, status string) error {
	d.statuses[userID] = status
	return nil
}

func newVerificationFixture() (*VerificationService, *fakeDocuments, *statusDirectory) {
	docs := &fakeDocuments{docs: map[string]*domain.Document{}}
	dir := &statusDirectory{statuses: map[string]string{}}
	return &VerificationService{Store: docs, Directory: dir}, docs, dir
}

func TestSubmitCreatesPendingDocument(t *testing.T) {
	svc, _, _ := newVerificationFixture()

	d, err := svc.Submit(t.Context(), "u1", "passport")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, d.Status)
	require.Equal(t, "u1", d.UserID)
}

func TestSubmitRejectsSecondOpenDocument(t *testing.T) {
	svc, _, _ := newVerificationFixture()

	_, err := svc.Submit(t.Context(), "u1", "passport")
	require.NoError(t, err)

	_, err = svc.Submit(t.Context(), "u1", "passport")
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmitAllowedAfterRejection(t *testing.T) {
	svc, docs, _ := newVerificationFixture()

	d, err := svc.Submit(t.Context(), "u1", "passport")
	require.NoError(t, err)
	docs.docs[d.ID].Status = domain.StatusRejected

	_, err = svc.Submit(t.Context(), "u1", "passport")
	require.NoError(t, err)
}

func TestReviewApproveActivatesUser(t *testing.T) {
	svc, _, dir := newVerificationFixture()

	d, err := svc.Submit(t.Context(), "u1", "passport")
	require.NoError(t, err)

	reviewed, err := svc.Review(t.Context(), d.ID, "approve")
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, reviewed.Status)
	require.Equal(t, "active", dir.statuses["u1"])

	status, err := svc.Status(t.Context(), "u1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, status)
}

func TestReviewRejectLeavesUserUntouched(t *testing.T) {
	svc, _, dir := newVerificationFixture()

	d, err := svc.Submit(t.Context(), "u1", "passport")
	require.NoError(t, err)

	reviewed, err := svc.Review(t.Context(), d.ID, "reject")
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, reviewed.Status)
	require.Empty(t, dir.statuses)
}

func TestReviewValidation(t *testing.T) {
	svc, _, _ := newVerificationFixture()

	_, err := svc.Review(t.Context(), "missing", "approve")
	require.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = svc.Review(t.Context(), "whatever", "escalate")
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestStatusWithoutDocument(t *testing.T) {
	svc, _, _ := newVerificationFixture()

	status, err := svc.Status(t.Context(), "u1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusNotVerified, status)
}
