package repository

import (
	"context"

	"authcore/internal/role/domain"
)

// Repository reads role assignments and writes the role catalogue.
// The auth core only calls GrantsForIdentity; the write methods serve seeding and tests.
type Repository interface {
	// GrantsForIdentity returns the role and permission names held by identityID.
	// An identity without assignments yields empty, non-nil slices.
	GrantsForIdentity(ctx context.Context, identityID string) (*domain.Grants, error)
	// EnsureRole creates the role and its permissions if missing and grants the permissions to it.
	EnsureRole(ctx context.Context, role *domain.Role) error
	// Assign gives identityID the role named roleName. Assigning twice is a no-op.
	Assign(ctx context.Context, identityID, roleName string) error
}
