// Package http is the holder-facing surface of the card service: issuing
// cards and driving their lifecycle. Balance transfers are not exposed
// here; they go through the payment service.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/vaultra/cardbank/internal/card/domain"
	"github.com/vaultra/cardbank/internal/card/service"
	"github.com/vaultra/cardbank/internal/platform/authguard"
	"github.com/vaultra/cardbank/pkg/httpx"
	"github.com/vaultra/cardbank/pkg/rpcx"
	"github.com/vaultra/cardbank/pkg/slogx"
)

type Handler struct {
	cards *service.CardService
}

// NewRouter builds the card service's HTTP router behind the auth guard.
func NewRouter(cards *service.CardService, guard authguard.Guard, logger *slog.Logger) http.Handler {
	h := &Handler{cards: cards}

	r := mux.NewRouter()
	r.Use(slogx.HTTPMiddleware(logger))

	api := r.PathPrefix("/cards").Subrouter()
	api.Use(authguard.Middleware(guard))

	api.HandleFunc("", h.open).Methods(http.MethodPost)
	api.HandleFunc("", h.list).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.get).Methods(http.MethodGet)
	api.HandleFunc("/{id}/block", h.block).Methods(http.MethodPost)
	api.HandleFunc("/{id}/unblock", h.unblock).Methods(http.MethodPost)
	api.HandleFunc("/{id}/close", h.close).Methods(http.MethodPost)

	return r
}

type openRequest struct {
	CardType string `json:"cardType"`
	Provider string `json:"provider"`
	Currency string `json:"currency"`
}

// openResponse includes the plaintext CVV exactly once, at issuance.
type openResponse struct {
	Card domain.Card `json:"card"`
	CVV  string      `json:"cvv"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	var req openRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Currency == "" {
		httpx.WriteError(w, rpcx.NewError(rpcx.CodeBadRequest, "currency is required"))
		return
	}

	opened, err := h.cards.Open(r.Context(), id.UserID, req.CardType, req.Provider, req.Currency)
	if err != nil {
		httpx.WriteError(w, mapServiceErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, openResponse{Card: opened.Card, CVV: opened.CVV})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	cards, err := h.cards.ListByUser(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if cards == nil {
		cards = []domain.Card{}
	}
	httpx.WriteJSON(w, http.StatusOK, cards)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	card, err := h.cards.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, mapServiceErr(err))
		return
	}
	if card.UserID != id.UserID {
		httpx.WriteError(w, rpcx.NewError(rpcx.CodeForbidden, service.ErrNotOwner.Error()))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, card)
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.cards.Block)
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.cards.Unblock)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.cards.Close)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, cardID string) (domain.Card, error)) {
	id := httpx.MustIdentity(r)

	card, err := op(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, mapServiceErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, card)
}

func mapServiceErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrCardNotFound):
		return rpcx.NewError(rpcx.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrNotOwner):
		return rpcx.NewError(rpcx.CodeForbidden, err.Error())
	case errors.Is(err, domain.ErrCardClosed), errors.Is(err, domain.ErrNonZeroBalance):
		return rpcx.NewError(rpcx.CodeConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCardType),
		errors.Is(err, service.ErrInvalidProvider),
		errors.Is(err, service.ErrInvalidAmount):
		return rpcx.NewError(rpcx.CodeBadRequest, err.Error())
	default:
		return err
	}
}
