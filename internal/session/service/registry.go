// Package service implements the session registry: a per-identity ledger of device logins,
// each independently and irreversibly invalidatable.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"authcore/internal/autherr"
	"authcore/internal/session/domain"
	"authcore/internal/session/repository"
)

// Registry creates, lists and invalidates sessions. Every repository call is bounded by the
// configured timeout and repository failures surface as autherr.DependencyUnavailable.
type Registry struct {
	repo    repository.Repository
	timeout time.Duration
	nowF    func() time.Time
}

// NewRegistry returns a Registry over repo. timeout <= 0 uses 2s.
func NewRegistry(repo repository.Repository, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{repo: repo, timeout: timeout, nowF: func() time.Time { return time.Now().UTC() }}
}

// Create records a new valid session for identityID.
func (r *Registry) Create(ctx context.Context, identityID string, dev domain.Device) (*domain.Session, error) {
	if identityID == "" {
		return nil, autherr.New(autherr.InvalidInput, "identity id required")
	}
	s := &domain.Session{
		ID:         uuid.New().String(),
		IdentityID: identityID,
		Device:     dev.Name,
		IPAddress:  dev.IP,
		UserAgent:  dev.UserAgent,
		IsValid:    true,
		CreatedAt:  r.nowF(),
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.repo.Create(ctx, s); err != nil {
		return nil, autherr.Unavailable("session: create", err)
	}
	return s, nil
}

// Get returns the session or SessionNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	s, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, autherr.Unavailable("session: get", err)
	}
	if s == nil {
		return nil, autherr.ErrSessionNotFound
	}
	return s, nil
}

// IsActive reports whether id names an existing valid session.
func (r *Registry) IsActive(ctx context.Context, id string) (bool, error) {
	s, err := r.Get(ctx, id)
	if autherr.KindOf(err) == autherr.SessionNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.IsValid, nil
}

// Invalidate moves a session to invalid. Invalidating an invalid session is a no-op;
// an unknown id fails with SessionNotFound.
func (r *Registry) Invalidate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	changed, err := r.repo.Invalidate(ctx, id, r.nowF())
	if err != nil {
		return autherr.Unavailable("session: invalidate", err)
	}
	if changed {
		return nil
	}
	s, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return autherr.Unavailable("session: get", err)
	}
	if s == nil {
		return autherr.ErrSessionNotFound
	}
	return nil
}

// InvalidateAllForIdentity invalidates every valid session of identityID and returns how many changed.
func (r *Registry) InvalidateAllForIdentity(ctx context.Context, identityID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.repo.InvalidateAllByIdentity(ctx, identityID, r.nowF())
	if err != nil {
		return 0, autherr.Unavailable("session: invalidate all", err)
	}
	return n, nil
}

// InvalidateOthers invalidates every valid session of identityID except keepID.
func (r *Registry) InvalidateOthers(ctx context.Context, identityID, keepID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.repo.InvalidateOthers(ctx, identityID, keepID, r.nowF())
	if err != nil {
		return 0, autherr.Unavailable("session: invalidate others", err)
	}
	return n, nil
}

// ListActive returns the valid sessions of identityID, most recent first.
func (r *Registry) ListActive(ctx context.Context, identityID string) ([]*domain.Session, error) {
	return r.list(ctx, identityID, true)
}

// ListAll returns every session of identityID, most recent first.
func (r *Registry) ListAll(ctx context.Context, identityID string) ([]*domain.Session, error) {
	return r.list(ctx, identityID, false)
}

// Delete hard-deletes a session. Unknown ids fail with SessionNotFound.
func (r *Registry) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ok, err := r.repo.Delete(ctx, id)
	if err != nil {
		return autherr.Unavailable("session: delete", err)
	}
	if !ok {
		return autherr.ErrSessionNotFound
	}
	return nil
}

func (r *Registry) list(ctx context.Context, identityID string, activeOnly bool) ([]*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	out, err := r.repo.ListByIdentity(ctx, identityID, activeOnly)
	if err != nil {
		return nil, autherr.Unavailable("session: list", err)
	}
	return out, nil
}
