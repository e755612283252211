package repository

import (
	"context"
	"sync"

	"authcore/internal/role/domain"
)

// MemoryRepository is an in-process Repository for tests and local development.
type MemoryRepository struct {
	mu          sync.Mutex
	roles       map[string][]string
	assignments map[string]map[string]struct{}
	calls       int
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{roles: make(map[string][]string), assignments: make(map[string]map[string]struct{})}
}

func (r *MemoryRepository) GrantsForIdentity(ctx context.Context, identityID string) (*domain.Grants, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++

	roles := make(map[string]struct{})
	perms := make(map[string]struct{})
	for name := range r.assignments[identityID] {
		roles[name] = struct{}{}
		for _, p := range r.roles[name] {
			perms[p] = struct{}{}
		}
	}
	return &domain.Grants{Roles: sortedKeys(roles), Permissions: sortedKeys(perms)}, nil
}

func (r *MemoryRepository) EnsureRole(_ context.Context, role *domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	perms := append(r.roles[role.Name], role.Permissions...)
	r.roles[role.Name] = perms
	role.ID = role.Name
	return nil
}

func (r *MemoryRepository) Assign(_ context.Context, identityID, roleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleName]; !ok {
		return ErrRoleNotFound
	}
	set, ok := r.assignments[identityID]
	if !ok {
		set = make(map[string]struct{})
		r.assignments[identityID] = set
	}
	set[roleName] = struct{}{}
	return nil
}

// Calls returns how many times GrantsForIdentity ran; tests use it to observe cache hits.
func (r *MemoryRepository) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
