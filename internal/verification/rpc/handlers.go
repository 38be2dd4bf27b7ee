// Package rpc exposes the verification service's commands on the broker.
package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vaultra/cardbank/internal/verification/service"
	"github.com/vaultra/cardbank/pkg/rpcx"
)

// Register wires the verification handlers onto the server. The
// get-verification-status command is the authorization gate consulted
// before every money-moving operation.
func Register(srv *rpcx.Server, verification *service.VerificationService) {
	srv.Handle("get-verification-status", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var userID string
		if err := json.Unmarshal(payload, &userID); err != nil || userID == "" {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "missing user id")
		}

		status, err := verification.Status(ctx, userID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": status}, nil
	})

	srv.Handle("submit-verification", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			UserID       string `json:"userId"`
			DocumentType string `json:"documentType"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.UserID == "" {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "malformed submit-verification payload")
		}

		d, err := verification.Submit(ctx, req.UserID, req.DocumentType)
		if errors.Is(err, service.ErrAlreadySubmitted) {
			return nil, rpcx.NewError(rpcx.CodeConflict, err.Error())
		}
		if err != nil {
			return nil, err
		}
		return d, nil
	})

	srv.Handle("admin-verify", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			DocumentID string `json:"documentId"`
			Action     string `json:"action"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, rpcx.NewError(rpcx.CodeBadRequest, "malformed admin-verify payload")
		}

		d, err := verification.Review(ctx, req.DocumentID, req.Action)
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			return nil, rpcx.NewError(rpcx.CodeNotFound, err.Error())
		case errors.Is(err, service.ErrUnknownAction):
			return nil, rpcx.NewError(rpcx.CodeBadRequest, err.Error())
		case err != nil:
			return nil, err
		}
		return d, nil
	})
}
