// Package http is the public credential surface: registration, login,
// two-factor enrollment and password recovery.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/vaultra/cardbank/internal/auth/service"
	"github.com/vaultra/cardbank/internal/platform/authguard"
	"github.com/vaultra/cardbank/pkg/httpx"
	"github.com/vaultra/cardbank/pkg/rpcx"
	"github.com/vaultra/cardbank/pkg/slogx"
)

type Handler struct {
	auth       *service.AuthService
	sessionTTL time.Duration
	secure     bool
}

// NewRouter builds the auth router. Login and recovery endpoints are
// rate limited aggressively; everything under /auth/me requires an
// authenticated caller.
func NewRouter(auth *service.AuthService, guard authguard.Guard, sessionTTL time.Duration, secureCookies bool, logger *slog.Logger) http.Handler {
	h := &Handler{auth: auth, sessionTTL: sessionTTL, secure: secureCookies}

	r := mux.NewRouter()
	r.Use(slogx.HTTPMiddleware(logger))

	api := r.PathPrefix("/auth").Subrouter()

	strict := httpx.NewRateLimiter(httpx.StrictLimit).Middleware

	api.Handle("/register", strict(http.HandlerFunc(h.register))).Methods(http.MethodPost)
	api.Handle("/login", strict(http.HandlerFunc(h.login))).Methods(http.MethodPost)
	api.Handle("/refresh", strict(http.HandlerFunc(h.refresh))).Methods(http.MethodPost)
	api.Handle("/password/forgot", strict(http.HandlerFunc(h.forgotPassword))).Methods(http.MethodPost)
	api.Handle("/password/reset", strict(http.HandlerFunc(h.resetPassword))).Methods(http.MethodPost)

	me := api.PathPrefix("/me").Subrouter()
	me.Use(authguard.Middleware(guard))
	me.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	me.HandleFunc("/logout-all", h.logoutAll).Methods(http.MethodPost)
	me.HandleFunc("/password", h.changePassword).Methods(http.MethodPut)
	me.HandleFunc("/2fa/setup", h.setup2FA).Methods(http.MethodPost)
	me.HandleFunc("/2fa/enable", h.enable2FA).Methods(http.MethodPost)
	me.HandleFunc("/2fa/verify", h.verify2FA).Methods(http.MethodPost)
	me.HandleFunc("/2fa/disable", h.disable2FA).Methods(http.MethodPost)

	return r
}

type registerRequest struct {
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	FullName    string     `json:"fullName"`
	Password    string     `json:"password"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, rpcx.NewError(rpcx.CodeBadRequest, "email and password are required"))
		return
	}

	profile, err := h.auth.Register(r.Context(), service.RegisterRequest{
		Email:       req.Email,
		Phone:       req.Phone,
		FullName:    req.FullName,
		Password:    req.Password,
		DateOfBirth: req.DateOfBirth,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, profile)
}

type loginRequest struct {
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"twoFactorCode,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	creds, err := h.auth.Login(r.Context(), service.LoginRequest{
		Email:         req.Email,
		Phone:         req.Phone,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorCode,
	})
	if err != nil {
		httpx.WriteError(w, mapAuthErr(err))
		return
	}

	if creds.SessionID != "" {
		h.setSessionCookie(w, creds.SessionID, h.sessionTTL)
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, creds.Tokens)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, mapAuthErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(authguard.SessionCookie); err == nil {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			httpx.WriteError(w, err)
			return
		}
	}
	h.setSessionCookie(w, "", -time.Second)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	n, err := h.auth.LogoutAll(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	h.setSessionCookie(w, "", -time.Second)
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), id.UserID, req.OldPassword, req.NewPassword); err != nil {
		httpx.WriteError(w, mapAuthErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	// The token is handed to the delivery channel, never to the caller.
	// The response is identical whether or not the account exists.
	if _, err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httpx.WriteError(w, mapAuthErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) setup2FA(w http.ResponseWriter, r *http.Request) {
	id := httpx.MustIdentity(r)

	setup, err := h.auth.Setup2FA(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, mapAuthErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, setup)
}

func (h *Handler) enable2FA(w http.ResponseWriter, r *http.Request) {
	h.twoFactorAction(w, r, h.auth.Enable2FA)
}

func (h *Handler) verify2FA(w http.ResponseWriter, r *http.Request) {
	h.twoFactorAction(w, r, h.auth.Verify2FA)
}

func (h *Handler) disable2FA(w http.ResponseWriter, r *http.Request) {
	h.twoFactorAction(w, r, h.auth.Disable2FA)
}

func (h *Handler) twoFactorAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, code string) error) {
	id := httpx.MustIdentity(r)

	var req struct {
		Code string `json:"code"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	if err := op(r.Context(), id.UserID, req.Code); err != nil {
		httpx.WriteError(w, mapAuthErr(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     authguard.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteNoneMode,
	})
}

func mapAuthErr(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSessionInvalid):
		return rpcx.NewError(rpcx.CodeUnauthorized, err.Error())
	case errors.Is(err, service.ErrUserBlocked):
		return rpcx.NewError(rpcx.CodeForbidden, err.Error())
	case errors.Is(err, service.ErrTwoFactorRequired),
		errors.Is(err, service.ErrInvalidTwoFactorCode),
		errors.Is(err, service.ErrResetTokenInvalid):
		return rpcx.NewError(rpcx.CodeBadRequest, err.Error())
	case errors.Is(err, service.ErrTwoFactorNotSetup):
		return rpcx.NewError(rpcx.CodeNotFound, err.Error())
	default:
		return err
	}
}
