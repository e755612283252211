package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"authcore/internal/role/domain"
)

// ErrRoleNotFound is returned by Assign when no role has the given name.
var ErrRoleNotFound = errors.New("role not found")

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a role repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GrantsForIdentity resolves roles and their permissions with a single query.
// Roles without permissions appear with a NULL permission name.
func (r *PostgresRepository) GrantsForIdentity(ctx context.Context, identityID string) (*domain.Grants, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.name, p.name
		   FROM role_assignments ra
		   JOIN roles r ON r.id = ra.role_id
		   LEFT JOIN permission_grants pg ON pg.role_id = r.id
		   LEFT JOIN permissions p ON p.id = pg.permission_id
		  WHERE ra.identity_id = $1`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := make(map[string]struct{})
	perms := make(map[string]struct{})
	for rows.Next() {
		var roleName string
		var permName sql.NullString
		if err := rows.Scan(&roleName, &permName); err != nil {
			return nil, err
		}
		roles[roleName] = struct{}{}
		if permName.Valid {
			perms[permName.String] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &domain.Grants{Roles: sortedKeys(roles), Permissions: sortedKeys(perms)}, nil
}

// EnsureRole upserts the role, each permission, and the grants between them in one transaction.
func (r *PostgresRepository) EnsureRole(ctx context.Context, role *domain.Role) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	roleID, err := upsertNamed(ctx, tx, "roles", role.Name)
	if err != nil {
		return fmt.Errorf("role %q: %w", role.Name, err)
	}
	for _, perm := range role.Permissions {
		permID, err := upsertNamed(ctx, tx, "permissions", perm)
		if err != nil {
			return fmt.Errorf("permission %q: %w", perm, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permission_grants (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			roleID, permID); err != nil {
			return fmt.Errorf("grant %q to %q: %w", perm, role.Name, err)
		}
	}
	role.ID = roleID
	return tx.Commit()
}

// Assign links identityID to the role named roleName.
func (r *PostgresRepository) Assign(ctx context.Context, identityID, roleName string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO role_assignments (identity_id, role_id)
		 SELECT $1, id FROM roles WHERE name = $2
		 ON CONFLICT DO NOTHING`, identityID, roleName)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, roleName).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRoleNotFound
		}
	}
	return nil
}

// upsertNamed inserts name into table (roles or permissions) if absent and returns its id.
func upsertNamed(ctx context.Context, tx *sql.Tx, table, name string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		`INSERT INTO `+table+` (id, name) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`, uuid.New().String(), name).Scan(&id)
	return id, err
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
