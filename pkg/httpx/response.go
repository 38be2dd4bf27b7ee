// Package httpx carries the small HTTP helpers shared by the service
// gateways: JSON responses, the error envelope, identity context and
// per-client rate limiting.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/vaultra/cardbank/pkg/rpcx"
)

// ErrorResponse is the user-visible failure body. Every externally-thrown
// error carries a numeric status and a message; anything unrecognized
// collapses to 500 "Internal Server Error".
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	ErrorText  string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code. Responses
// are marked non-cacheable since most carry credentials or balances.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps an error to the response envelope. Typed rpcx errors
// keep their code and message; everything else becomes a 500.
func WriteError(w http.ResponseWriter, err error) {
	re := rpcx.AsError(err)
	WriteJSON(w, re.Code, ErrorResponse{
		StatusCode: re.Code,
		Message:    re.Message,
		ErrorText:  statusText(re.Code),
	})
}

// Decode reads a JSON request body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return rpcx.NewError(rpcx.CodeBadRequest, "malformed request body")
	}
	return nil
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Internal Server Error"
}
