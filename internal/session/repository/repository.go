package repository

import (
	"context"
	"time"

	"authcore/internal/session/domain"
)

// Repository defines persistence for sessions. Invalidate* methods only touch rows that are
// still valid, so an invalid row is never revived and invalidated_at is stamped once.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// ListByIdentity returns sessions for identityID, most recent first. activeOnly filters to valid rows.
	ListByIdentity(ctx context.Context, identityID string, activeOnly bool) ([]*domain.Session, error)
	// Invalidate flips one valid session to invalid. Returns false if the row was missing or already invalid.
	Invalidate(ctx context.Context, id string, at time.Time) (bool, error)
	// InvalidateAllByIdentity flips every valid session of identityID. Returns the number of rows changed.
	InvalidateAllByIdentity(ctx context.Context, identityID string, at time.Time) (int64, error)
	// InvalidateOthers is InvalidateAllByIdentity excluding keepID.
	InvalidateOthers(ctx context.Context, identityID, keepID string, at time.Time) (int64, error)
	// Delete removes the row. Returns false if it did not exist.
	Delete(ctx context.Context, id string) (bool, error)
}
