package rpcx

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeErrorCanonicalShape(t *testing.T) {
	e := DecodeError(json.RawMessage(`{"code":404,"message":"Card not found"}`))
	require.Equal(t, CodeNotFound, e.Code)
	require.Equal(t, "Card not found", e.Message)
}

// TestDecodeErrorLegacyShapes covers the payloads older producers still
// emit: status or statusCode for the code, error for the message.
func TestDecodeErrorLegacyShapes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode int
		wantMsg  string
	}{
		{"status field", `{"status":403,"message":"Forbidden"}`, CodeForbidden, "Forbidden"},
		{"statusCode field", `{"statusCode":409,"error":"Conflict"}`, CodeConflict, "Conflict"},
		{"error instead of message", `{"code":400,"error":"Bad input"}`, CodeBadRequest, "Bad input"},
		{"message wins over error", `{"code":400,"message":"a","error":"b"}`, CodeBadRequest, "a"},
		{"code wins over status", `{"code":404,"status":500}`, CodeNotFound, "Unknown error"},
		{"nothing usable", `{}`, CodeInternal, "Unknown error"},
		{"not even json", `"boom"`, CodeInternal, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DecodeError(json.RawMessage(tt.raw))
			require.Equal(t, tt.wantCode, e.Code)
			require.Equal(t, tt.wantMsg, e.Message)
		})
	}
}

func TestAsError(t *testing.T) {
	typed := NewError(CodeConflict, "duplicate")
	require.Same(t, typed, AsError(typed))
	require.Same(t, typed, AsError(fmt.Errorf("wrap: %w", typed)))

	plain := AsError(errors.New("disk on fire"))
	require.Equal(t, CodeInternal, plain.Code)
	require.Equal(t, "Internal Server Error", plain.Message)
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, CodeTimeout, CodeOf(NewError(CodeTimeout, "slow")))
	require.Equal(t, CodeInternal, CodeOf(errors.New("anything")))
}
