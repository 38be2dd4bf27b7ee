package domain

import "time"

// Document statuses. A user is allowed to move money only once a
// document of theirs is approved.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	// StatusNotVerified is reported for users with no document on file.
	StatusNotVerified = "not_verified"
)

type Document struct {
	ID           string
	UserID       string
	DocumentType string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
