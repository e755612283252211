// Package handler exposes the session registry over HTTP: callers list and revoke their own
// sessions; administrators hard-delete any session.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"authcore/internal/autherr"
	"authcore/internal/httpx"
	identitydomain "authcore/internal/identity/domain"
	"authcore/internal/server/interceptors"
	"authcore/internal/session/domain"
	teldomain "authcore/internal/telemetry/domain"
)

// Registry is the part of the session registry the handler uses. *service.Registry implements it.
type Registry interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	ListActive(ctx context.Context, identityID string) ([]*domain.Session, error)
	ListAll(ctx context.Context, identityID string) ([]*domain.Session, error)
	Invalidate(ctx context.Context, id string) error
	InvalidateOthers(ctx context.Context, identityID, keepID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// Observer receives session_revoked events. May be nil.
type Observer interface {
	Observe(ctx context.Context, ev *teldomain.AuthEvent)
}

type Handler struct {
	reg      Registry
	observer Observer
	log      zerolog.Logger
}

func NewHandler(reg Registry, observer Observer, log zerolog.Logger) *Handler {
	return &Handler{reg: reg, observer: observer, log: log}
}

// Routes mounts the caller-scoped routes. r must already require authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/v1/sessions", h.list)
	r.Post("/v1/sessions/revoke-others", h.revokeOthers)
	r.Delete("/v1/sessions/{id}", h.revoke)
}

// AdminRoutes mounts the administrative routes. r must already require the admin role.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Delete("/v1/admin/sessions/{id}", h.adminDelete)
}

type sessionJSON struct {
	ID            string     `json:"id"`
	Device        string     `json:"device"`
	IPAddress     string     `json:"ip_address"`
	UserAgent     string     `json:"user_agent"`
	IsValid       bool       `json:"is_valid"`
	Current       bool       `json:"current"`
	CreatedAt     time.Time  `json:"created_at"`
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`
}

func toJSON(s *domain.Session, currentID string) sessionJSON {
	return sessionJSON{
		ID:            s.ID,
		Device:        s.Device,
		IPAddress:     s.IPAddress,
		UserAgent:     s.UserAgent,
		IsValid:       s.IsValid,
		Current:       s.ID == currentID,
		CreatedAt:     s.CreatedAt,
		InvalidatedAt: s.InvalidatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var (
		sessions []*domain.Session
		err      error
	)
	if r.URL.Query().Get("all") == "true" {
		sessions, err = h.reg.ListAll(r.Context(), p.IdentityID)
	} else {
		sessions, err = h.reg.ListActive(r.Context(), p.IdentityID)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]sessionJSON, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toJSON(s, p.SessionID))
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *Handler) revokeOthers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if p.SessionID == "" {
		httpx.RespondError(w, autherr.New(autherr.InvalidInput, "token is not bound to a session"))
		return
	}
	n, err := h.reg.InvalidateOthers(r.Context(), p.IdentityID, p.SessionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.observe(r.Context(), p.IdentityID, "", "revoke_others")
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"revoked": n})
}

// revoke invalidates one of the caller's own sessions. Sessions of other identities are reported
// as not found.
func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	s, err := h.reg.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if s.IdentityID != p.IdentityID {
		httpx.RespondError(w, autherr.ErrSessionNotFound)
		return
	}
	if err := h.reg.Invalidate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.observe(r.Context(), p.IdentityID, id, "revoked_by_owner")
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (h *Handler) adminDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.reg.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.reg.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.log.Info().Str("session_id", id).Str("identity_id", s.IdentityID).Msg("session deleted by admin")
	h.observe(r.Context(), s.IdentityID, id, "deleted_by_admin")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) observe(ctx context.Context, identityID, sessionID, reason string) {
	if h.observer == nil {
		return
	}
	h.observer.Observe(ctx, &teldomain.AuthEvent{
		Type:       teldomain.EventSessionRevoked,
		IdentityID: identityID,
		SessionID:  sessionID,
		Reason:     reason,
		Source:     "session_handler",
	})
}

func principal(w http.ResponseWriter, r *http.Request) (*identitydomain.Principal, bool) {
	p, ok := interceptors.PrincipalFrom(r.Context())
	if !ok {
		httpx.RespondError(w, autherr.ErrNoToken)
		return nil, false
	}
	return p, true
}
