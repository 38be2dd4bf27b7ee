// Package directory is the client side of the user-directory RPC surface,
// consumed by the auth and verification services.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/vaultra/cardbank/pkg/rpcx"
)

// Profile is the wire shape of a directory user.
type Profile struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	FullName         string     `json:"fullName"`
	PasswordHash     string     `json:"passwordHash"`
	DateOfBirth      *time.Time `json:"dateOfBirth,omitempty"`
	Role             string     `json:"role"`
	Status           string     `json:"status"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
}

// FindQuery selects a user by exactly one of its unique fields.
type FindQuery struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// NewProfile is the create-user payload.
type NewProfile struct {
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	FullName     string     `json:"fullName"`
	PasswordHash string     `json:"passwordHash"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
}

// Directory is the view of the user service the credential core needs.
type Directory interface {
	// Find returns nil when no user matches the query.
	Find(ctx context.Context, q FindQuery) (*Profile, error)
	Create(ctx context.Context, p NewProfile) (*Profile, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetTwoFactor(ctx context.Context, userID string, enabled bool) error
	SetStatus(ctx context.Context, userID, status string) error
}

// Client talks to the user service queue over the broker.
type Client struct {
	rpc *rpcx.Client
}

func NewClient(rpc *rpcx.Client) *Client {
	return &Client{rpc: rpc}
}

func (c *Client) Find(ctx context.Context, q FindQuery) (*Profile, error) {
	var p *Profile
	if err := c.rpc.Call(ctx, "find-user", q, &p); err != nil {
		// The directory answers null rather than an error for no match,
		// but tolerate peers that report 404.
		if rpcx.CodeOf(err) == rpcx.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (c *Client) Create(ctx context.Context, np NewProfile) (*Profile, error) {
	var p Profile
	if err := c.rpc.Call(ctx, "create-user", np, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, errors.New("directory: create-user returned no id")
	}
	return &p, nil
}

func (c *Client) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	payload := struct {
		UserID       string `json:"userId"`
		PasswordHash string `json:"passwordHash"`
	}{userID, passwordHash}

	return c.rpc.Call(ctx, "update-user-password", payload, nil)
}

func (c *Client) SetTwoFactor(ctx context.Context, userID string, enabled bool) error {
	payload := struct {
		UserID string `json:"userId"`
	}{userID}

	cmd := "enable-2fa"
	if !enabled {
		cmd = "disable-2fa"
	}
	return c.rpc.Call(ctx, cmd, payload, nil)
}

func (c *Client) SetStatus(ctx context.Context, userID, status string) error {
	payload := struct {
		UserID string `json:"userId"`
		Status string `json:"status"`
	}{userID, status}

	return c.rpc.Call(ctx, "change-user-status", payload, nil)
}
