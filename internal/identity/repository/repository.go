package repository

import (
	"context"

	"authcore/internal/identity/domain"
)

// Repository defines persistence for identities.
type Repository interface {
	// GetByID returns the identity for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	// GetByEmail returns the identity for a normalised email, or nil if not found.
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// Create inserts i. Returns ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, i *domain.Identity) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}
