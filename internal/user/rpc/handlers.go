// Package rpc exposes the user directory's command surface on the broker.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vaultra/cardbank/internal/user/domain"
	"github.com/vaultra/cardbank/internal/user/service"
	"github.com/vaultra/cardbank/pkg/rpcx"
)

// profile is the wire shape served to sibling services. The password hash
// is included: the directory's only consumers are internal services and
// the auth service needs it for verification.
type profile struct {
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

func toProfile(u domain.User) profile {
	return profile{
		ID:               u.ID,
		Email:            u.Email,
		Phone:            u.Phone,
		FullName:         u.FullName,
		PasswordHash:     u.PasswordHash,
		DateOfBirth:      u.DateOfBirth,
		Role:             u.Role,
		Status:           u.Status,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

// Register wires the directory handlers onto the server.
func Register(srv *rpcx.Server, users *service.UserService) {
	srv.Handle("find-user", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var q struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Phone string `json:"phone"`
		}
		if err := json.Unmarshal(payload, &q); err != nil {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "malformed find-user payload")
		}

		u, err := users.Find(ctx, q.ID, q.Email, q.Phone)
		if errors.Is(err, service.ErrNotFound) {
			// A miss is an expected answer here, not an error.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return toProfile(u), nil
	})

	srv.Handle("create-user", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var nu struct {
			Email        string     `json:"email"`
			Phone        string     `json:"phone"`
			FullName     string     `json:"fullName"`
			PasswordHash string     `json:"passwordHash"`
			DateOfBirth  *time.Time `json:"dateOfBirth"`
			Role         string     `json:"role"`
			Status       string     `json:"status"`
		}
		if err := json.Unmarshal(payload, &nu); err != nil {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "malformed create-user payload")
		}

		u, err := users.Create(ctx, service.NewUser{
			Email:        nu.Email,
			Phone:        nu.Phone,
			FullName:     nu.FullName,
			PasswordHash: nu.PasswordHash,
			DateOfBirth:  nu.DateOfBirth,
			Role:         nu.Role,
			Status:       nu.Status,
		})
		if errors.Is(err, service.ErrDuplicate) {
			return nil, rpcx.NewError(rpcx.CodeConflict, err.Error())
		}
		if err != nil {
			return nil, err
		}
		return toProfile(u), nil
	})

	srv.Handle("update-user-password", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			UserID       string `json:"userId"`
			PasswordHash string `json:"passwordHash"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "malformed update-user-password payload")
		}
		return okReply(users.UpdatePassword(ctx, req.UserID, req.PasswordHash))
	})

	srv.Handle("enable-2fa", func(ctx context.Context, payload json.RawMessage) (any, error) {
		userID, err := decodeUserID(payload)
		if err != nil {
			return nil, err
		}
		return okReply(users.SetTwoFactorEnabled(ctx, userID, true))
	})

	srv.Handle("disable-2fa", func(ctx context.Context, payload json.RawMessage) (any, error) {
		userID, err := decodeUserID(payload)
		if err != nil {
			return nil, err
		}
		return okReply(users.SetTwoFactorEnabled(ctx, userID, false))
	})

	srv.Handle("change-user-status", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			UserID string `json:"userId"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "malformed change-user-status payload")
		}
		return okReply(users.SetStatus(ctx, req.UserID, req.Status))
	})
}

func decodeUserID(payload json.RawMessage) (string, error) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.UserID == "" {
		return "", rpcx.NewError(rpcx.CodeBadRequest, "missing userId")
	}
	return req.UserID, nil
}

func okReply(err error) (any, error) {
	if errors.Is(err, service.ErrNotFound) {
		return nil, rpcx.NewError(rpcx.CodeNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}
