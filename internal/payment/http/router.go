// Package http exposes the payment orchestrator to account holders.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/vaultra/cardbank/internal/payment/domain"
	"github.com/vaultra/cardbank/internal/payment/service"
	"github.com/vaultra/cardbank/internal/platform/authguard"
	"github.com/vaultra/cardbank/pkg/httpx"
	"github.com/vaultra/cardbank/pkg/rpcx"
	"github.com/vaultra/cardbank/pkg/slogx"
)

type Handler struct {
	payments *service.PaymentService
}

// NewRouter builds the payment router. Every route sits behind the auth
// guard; moving money additionally requires approved identity
// verification.
func NewRouter(payments *service.PaymentService, guard authguard.Guard, verify *authguard.VerificationGuard, logger *slog.Logger) http.Handler {
	h := &Handler{payments: payments}

	r := mux.NewRouter()
	r.Use(slogx.HTTPMiddleware(logger))

	api := r.PathPrefix("/payments").Subrouter()
	api.Use(authguard.Middleware(guard))

	transfer := api.Path("/transfer").Subrouter()
	transfer.Use(verify.Middleware)
	transfer.HandleFunc("", h.transfer).Methods(http.MethodPost)

	api.HandleFunc("/history", h.history).Methods(http.MethodGet)
	api.HandleFunc("/history/card/{number}", h.historyByCard).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.getByID).Methods(http.MethodGet)

	return r
}

type transferRequest struct {
	SenderCardNumber   string          `json:"senderCardNumber"`
	ReceiverCardNumber string          `json:"receiverCardNumber"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	var req transferRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	// A ledger refusal is not an error here: the attempt is archived and
	// the record comes back with status failed.
	record, err := h.payments.Transfer(r.Context(), id.UserID, service.TransferRequest{
		SenderCardNumber:   req.SenderCardNumber,
		ReceiverCardNumber: req.ReceiverCardNumber,
		Amount:             req.Amount,
		Currency:           req.Currency,
	})
	if err != nil {
		httpx.WriteError(w, mapServiceErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	transfers, err := h.payments.History(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, mapServiceErr(err))
		return
	}
	if transfers == nil {
		transfers = []domain.HistoryEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, transfers)
}

func (h *Handler) historyByCard(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	transfers, err := h.payments.HistoryByCard(r.Context(), id.UserID, mux.Vars(r)["number"])
	if err != nil {
		httpx.WriteError(w, mapServiceErr(err))
		return
	}
	if transfers == nil {
		transfers = []domain.HistoryEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, transfers)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	t, err := h.payments.GetByID(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		httpx.WriteError(w, mapServiceErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func mapServiceErr(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		return rpcx.NewError(rpcx.CodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrCardNotFound), errors.Is(err, domain.ErrTransferNotFound):
		return rpcx.NewError(rpcx.CodeNotFound, err.Error())
	case errors.Is(err, domain.ErrNotYourCard):
		return rpcx.NewError(rpcx.CodeForbidden, err.Error())
	default:
		return err
	}
}
