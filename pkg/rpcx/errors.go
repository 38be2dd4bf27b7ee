package rpcx

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Canonical status codes carried in the RPC error envelope. They mirror
// the HTTP taxonomy so gateways can surface them without translation.
const (
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeTimeout      = 504
	CodeInternal     = 500
)

// Error is the one canonical typed error envelope for all internal RPC
// responses. Handlers return it directly; anything else crossing the
// boundary is reported as a 500.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsError extracts a *Error from an error chain, or wraps the error as an
// internal one.
func AsError(err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Code: CodeInternal, Message: "Internal Server Error"}
}

// CodeOf returns the envelope code of err, or CodeInternal when err does
// not carry one.
func CodeOf(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeInternal
}

// DecodeError coerces heterogeneous error payloads from historical
// producers into the canonical envelope. Some peers emit {code,message},
// others {status,...} or {statusCode,...}; this is the single place that
// field-sniffing is allowed.
func DecodeError(raw json.RawMessage) *Error {
	var shape struct {
		Code       *int   `json:"code"`
		Status     *int   `json:"status"`
		StatusCode *int   `json:"statusCode"`
		Message    string `json:"message"`
		Err        string `json:"error"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return &Error{Code: CodeInternal, Message: "Unknown error"}
	}

	code := CodeInternal
	switch {
	case shape.Code != nil && *shape.Code != 0:
		code = *shape.Code
	case shape.Status != nil && *shape.Status != 0:
		code = *shape.Status
	case shape.StatusCode != nil && *shape.StatusCode != 0:
		code = *shape.StatusCode
	}

	msg := shape.Message
	if msg == "" {
		msg = shape.Err
	}
	if msg == "" {
		msg = "Unknown error"
	}

	return &Error{Code: code, Message: msg}
}
