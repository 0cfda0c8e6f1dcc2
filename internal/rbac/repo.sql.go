package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for roles,
// permissions and assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, access_level, is_active, created_at, updated_at
		FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, access_level, is_active, created_at, updated_at
		FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

// InsertRole creates a role.
func (r *Repository) InsertRole(ctx context.Context, name string, accessLevel int) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, access_level, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, NOW(), NOW())
		RETURNING id, name, access_level, is_active, created_at, updated_at`,
		name, accessLevel)
	return scanRole(row)
}

// UpdateRole updates name, level and active flag of a role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name string, accessLevel int, isActive bool) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles SET name = $2, access_level = $3, is_active = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, access_level, is_active, created_at, updated_at`,
		id, name, accessLevel, isActive)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

// ListPermissions returns the full permission catalog ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, module, action FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Module, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// EnsurePermission upserts a permission by name.
func (r *Repository) EnsurePermission(ctx context.Context, name, module, action string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, module, action)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET module = EXCLUDED.module, action = EXCLUDED.action
		RETURNING id, name, module, action`,
		name, module, action)
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.Module, &p.Action)
	return p, err
}

// ListRolePermissionIDs returns the permission IDs attached to a role.
func (r *Repository) ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AttachPermission links a permission to a role.
func (r *Repository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

// DetachPermission removes a permission from a role.
func (r *Repository) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

// UpsertAssignment assigns a role to an actor, reactivating a
// suspended assignment when one already exists.
func (r *Repository) UpsertAssignment(ctx context.Context, actorID, roleID int64, isActive bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO actor_roles (actor_id, role_id, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (actor_id, role_id) DO UPDATE SET is_active = EXCLUDED.is_active`,
		actorID, roleID, isActive)
	return err
}

// DeleteAssignment removes the actor/role link entirely.
func (r *Repository) DeleteAssignment(ctx context.Context, actorID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM actor_roles WHERE actor_id = $1 AND role_id = $2`, actorID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var (
		role      Role
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&role.ID, &role.Name, &role.AccessLevel, &role.IsActive, &createdAt, &updatedAt); err != nil {
		return Role{}, err
	}
	role.CreatedAt = createdAt.Time
	role.UpdatedAt = updatedAt.Time
	return role, nil
}
