package domain

import "time"

// User statuses. New registrations start unverified and become active
// once the verification service approves an identity document.
const (
	StatusUnverified = "unverified"
	StatusActive     = "active"
	StatusBlocked    = "blocked"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID               string
	Email            string
	Phone            string
	FullName         string
	PasswordHash     string
	DateOfBirth      *time.Time
	Role             string
	Status           string
	TwoFactorEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
