// Package handler serves audit history: callers read their own trail, administrators read anyone's.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"authcore/internal/audit/domain"
	"authcore/internal/autherr"
	"authcore/internal/httpx"
	"authcore/internal/server/interceptors"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Lister reads audit entries newest first. *repository.PostgresRepository implements it.
type Lister interface {
	ListByIdentity(ctx context.Context, identityID string, limit, offset int32) ([]*domain.AuditLog, error)
}

type Handler struct {
	repo Lister
}

func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// Routes mounts GET /v1/audit. r must already require authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/v1/audit", h.own)
}

// AdminRoutes mounts GET /v1/admin/identities/{id}/audit. r must already require the admin role.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/v1/admin/identities/{id}/audit", h.forIdentity)
}

type entryJSON struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Resource  string            `json:"resource"`
	IP        string            `json:"ip"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (h *Handler) own(w http.ResponseWriter, r *http.Request) {
	p, ok := interceptors.PrincipalFrom(r.Context())
	if !ok {
		httpx.RespondError(w, autherr.ErrNoToken)
		return
	}
	h.respond(w, r, p.IdentityID)
}

func (h *Handler) forIdentity(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, identityID string) {
	limit, offset, err := page(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.repo.ListByIdentity(r.Context(), identityID, limit, offset)
	if err != nil {
		httpx.RespondError(w, autherr.Unavailable("audit list", err))
		return
	}
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{
			ID:        e.ID,
			Action:    e.Action,
			Resource:  e.Resource,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// page reads ?limit= and ?offset=. limit defaults to 50 and is capped at 200.
func page(r *http.Request) (int32, int32, error) {
	limit, offset := int64(defaultLimit), int64(0)
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n <= 0 {
			return 0, 0, autherr.New(autherr.InvalidInput, "limit must be a positive integer")
		}
		limit = min(n, maxLimit)
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || n < 0 {
			return 0, 0, autherr.New(autherr.InvalidInput, "offset must be a non-negative integer")
		}
		offset = n
	}
	return int32(limit), int32(offset), nil
}
