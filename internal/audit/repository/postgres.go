package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"authcore/internal/audit/domain"
)

// PostgresRepository implements Repository with database/sql.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	var meta []byte
	if len(a.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(a.Metadata); err != nil {
			return err
		}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, identity_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, sql.NullString{String: a.IdentityID, Valid: a.IdentityID != ""}, a.Action, a.Resource, a.IP, meta, a.CreatedAt,
	)
	return err
}

// ListByIdentity returns audit logs for identityID, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListByIdentity(ctx context.Context, identityID string, limit, offset int32) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, identity_id, action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE identity_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		identityID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		var (
			a    domain.AuditLog
			id   sql.NullString
			meta []byte
		)
		if err := rows.Scan(&a.ID, &id, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.IdentityID = id.String
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
