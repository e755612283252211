package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authcore/internal/session/domain"
)

const sessionColumns = `id, identity_id, device, ip_address, user_agent, is_valid, created_at, invalidated_at`

// PostgresRepository implements Repository with database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.IdentityID, s.Device, s.IPAddress, s.UserAgent, s.IsValid, s.CreatedAt, timeToNullTime(s.InvalidatedAt),
	)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByIdentity returns sessions for identityID ordered by created_at descending.
func (r *PostgresRepository) ListByIdentity(ctx context.Context, identityID string, activeOnly bool) ([]*domain.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE identity_id = $1`
	if activeOnly {
		q += ` AND is_valid = true`
	}
	q += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Invalidate marks the session invalid if it is still valid.
func (r *PostgresRepository) Invalidate(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_valid = false, invalidated_at = $2 WHERE id = $1 AND is_valid = true`, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// InvalidateAllByIdentity marks every valid session of identityID invalid.
func (r *PostgresRepository) InvalidateAllByIdentity(ctx context.Context, identityID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_valid = false, invalidated_at = $2 WHERE identity_id = $1 AND is_valid = true`, identityID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InvalidateOthers marks every valid session of identityID except keepID invalid.
func (r *PostgresRepository) InvalidateOthers(ctx context.Context, identityID, keepID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_valid = false, invalidated_at = $3 WHERE identity_id = $1 AND id <> $2 AND is_valid = true`,
		identityID, keepID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the session row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s             domain.Session
		invalidatedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.IdentityID, &s.Device, &s.IPAddress, &s.UserAgent, &s.IsValid, &s.CreatedAt, &invalidatedAt); err != nil {
		return nil, err
	}
	s.InvalidatedAt = nullTimeToPtr(invalidatedAt)
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
