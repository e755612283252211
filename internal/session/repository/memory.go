package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"authcore/internal/session/domain"
)

// MemoryRepository is an in-process Repository for tests and local development.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListByIdentity(ctx context.Context, identityID string, activeOnly bool) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.IdentityID != identityID || (activeOnly && !s.IsValid) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) Invalidate(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.IsValid {
		return false, nil
	}
	invalidate(s, at)
	return true, nil
}

func (r *MemoryRepository) InvalidateAllByIdentity(ctx context.Context, identityID string, at time.Time) (int64, error) {
	return r.invalidateWhere(func(s *domain.Session) bool { return s.IdentityID == identityID }, at), nil
}

func (r *MemoryRepository) InvalidateOthers(ctx context.Context, identityID, keepID string, at time.Time) (int64, error) {
	return r.invalidateWhere(func(s *domain.Session) bool {
		return s.IdentityID == identityID && s.ID != keepID
	}, at), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false, nil
	}
	delete(r.sessions, id)
	return true, nil
}

func (r *MemoryRepository) invalidateWhere(match func(*domain.Session) bool, at time.Time) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.IsValid && match(s) {
			invalidate(s, at)
			n++
		}
	}
	return n
}

func invalidate(s *domain.Session, at time.Time) {
	s.IsValid = false
	t := at
	s.InvalidatedAt = &t
}
