// Package handler exposes the authentication flows over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"authcore/internal/autherr"
	"authcore/internal/httpx"
	"authcore/internal/identity/domain"
	"authcore/internal/identity/service"
	"authcore/internal/server/interceptors"
	sessiondomain "authcore/internal/session/domain"
)

// Service is the auth service surface used by the handler. *service.AuthService implements it.
type Service interface {
	Signup(ctx context.Context, email, password string) (*domain.Identity, error)
	Login(ctx context.Context, email, password string, dev sessiondomain.Device) (*service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, p *domain.Principal) error
	ForgotPassword(ctx context.Context, email string)
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, p *domain.Principal, current, newPassword string) error
	Me(ctx context.Context, p *domain.Principal) (*domain.Summary, error)
}

// forgotPasswordMessage is returned whether or not the address is registered.
const forgotPasswordMessage = "If an account exists for that email, a reset link has been sent."

type Handler struct {
	svc Service
	log zerolog.Logger
}

func NewHandler(svc Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the auth routes on r. limit guards the unauthenticated credential endpoints
// and requireAuth the bearer-protected ones; either may be nil.
func (h *Handler) Routes(r chi.Router, requireAuth, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/v1/auth/signup", h.signup)
		r.Post("/v1/auth/login", h.login)
		r.Post("/v1/auth/refresh", h.refresh)
		r.Post("/v1/auth/forgot-password", h.forgotPassword)
		r.Post("/v1/auth/reset-password", h.resetPassword)
	})
	r.Group(func(r chi.Router) {
		if requireAuth != nil {
			r.Use(requireAuth)
		}
		r.Post("/v1/auth/logout", h.logout)
		r.Post("/v1/auth/change-password", h.changePassword)
		r.Get("/v1/auth/me", h.me)
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Device   string `json:"device,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type tokenResponse struct {
	AccessToken      string         `json:"access_token"`
	RefreshToken     string         `json:"refresh_token"`
	TokenType        string         `json:"token_type"`
	ExpiresIn        int64          `json:"expires_in"`
	AccessExpiresAt  time.Time      `json:"access_expires_at"`
	RefreshExpiresAt time.Time      `json:"refresh_expires_at"`
	SessionID        string         `json:"session_id"`
	Identity         domain.Summary `json:"identity"`
}

func newTokenResponse(p *service.TokenPair, now time.Time) tokenResponse {
	expiresIn := int64(p.AccessExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return tokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        expiresIn,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		SessionID:        p.SessionID,
		Identity:         p.Identity,
	}
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ident, err := h.svc.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, "signup", err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, ident.Summary())
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	dev := sessiondomain.Device{
		Name:      req.Device,
		IP:        interceptors.ClientIPFrom(r.Context()),
		UserAgent: r.UserAgent(),
	}
	pair, err := h.svc.Login(r.Context(), req.Email, req.Password, dev)
	if err != nil {
		h.respondError(w, "login", err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, newTokenResponse(pair, time.Now()))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(w, "refresh", err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, newTokenResponse(pair, time.Now()))
}

// logout always reports success once the caller is authenticated so the client can clear
// its credentials; store failures are logged by the service.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.svc.Logout(r.Context(), p); err != nil {
		h.log.Warn().Err(err).Str("identity_id", p.IdentityID).Msg("logout completed with errors")
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.svc.ForgotPassword(r.Context(), req.Email)
	httpx.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "message": forgotPasswordMessage})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.respondError(w, "reset_password", err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "password_reset"})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(w, "change_password", err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	sum, err := h.svc.Me(r.Context(), p)
	if err != nil {
		h.respondError(w, "me", err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, sum)
}

// respondError logs unexpected failures before writing the public error.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch autherr.KindOf(err) {
	case autherr.DependencyUnavailable:
		h.log.Error().Err(err).Str("op", op).Msg("dependency unavailable")
	case "":
		h.log.Error().Err(err).Str("op", op).Msg("unexpected error")
	}
	httpx.RespondError(w, err)
}

func principal(w http.ResponseWriter, r *http.Request) (*domain.Principal, bool) {
	p, ok := interceptors.PrincipalFrom(r.Context())
	if !ok {
		httpx.RespondError(w, autherr.ErrNoToken)
		return nil, false
	}
	return p, true
}
