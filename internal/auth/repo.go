package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the storage operations the auth core needs. The
// relational schema is owned by the storage collaborator; the core
// only reads actor/role/permission records and touches the last-login
// timestamp.
type Repository interface {
	FindActorByEmail(ctx context.Context, email string) (*Actor, error)
	Assignments(ctx context.Context, actorID int64) ([]Assignment, error)
	TouchLastLogin(ctx context.Context, actorID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindActorByEmail fetches an actor by case-normalized email.
func (r *PGRepository) FindActorByEmail(ctx context.Context, email string) (*Actor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, name, primaria_id, password_hash, is_active, last_login_at, created_at, updated_at
		FROM actors
		WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email),
	)
	var (
		actor     Actor
		lastLogin pgtype.Timestamptz
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&actor.ID, &actor.Email, &actor.Name, &actor.PrimariaID, &actor.PasswordHash, &actor.IsActive, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownActor
		}
		return nil, err
	}
	if lastLogin.Valid {
		actor.LastLoginAt = &lastLogin.Time
	}
	actor.CreatedAt = createdAt.Time
	actor.UpdatedAt = updatedAt.Time
	return &actor, nil
}

// Assignments returns every role assignment of the actor, including
// suspended roles and suspended assignments. Filtering on the active
// flags is the resolver's job, not the query's.
func (r *PGRepository) Assignments(ctx context.Context, actorID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.access_level, r.is_active, ar.is_active,
		       COALESCE(array_agg(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
		FROM actor_roles ar
		JOIN roles r ON r.id = ar.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ar.actor_id = $1
		GROUP BY r.id, r.name, r.access_level, r.is_active, ar.is_active
		ORDER BY r.id`,
		actorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.Role.ID, &a.Role.Name, &a.Role.AccessLevel, &a.Role.IsActive, &a.Active, &a.Permissions); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// TouchLastLogin records the successful login time.
func (r *PGRepository) TouchLastLogin(ctx context.Context, actorID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE actors SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, actorID)
	return err
}

var _ Repository = (*PGRepository)(nil)
