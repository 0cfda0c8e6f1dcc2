package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the actor does not exist.
var ErrNotFound = errors.New("users: not found")

// ErrEmailTaken indicates another actor already uses the email.
var ErrEmailTaken = errors.New("users: email already in use")

// Repository provides PostgreSQL backed persistence for actors.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, primaria_id, is_active, last_login_at, created_at, updated_at`

// List returns the actors of one primarie ordered by name.
func (r *Repository) List(ctx context.Context, primariaID int64) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM actors WHERE primaria_id = $1 ORDER BY name`, primariaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get fetches an actor by ID.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM actors WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Insert provisions a new actor with an already-hashed password.
func (r *Repository) Insert(ctx context.Context, in CreateInput, passwordHash string) (User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO actors (email, name, primaria_id, password_hash, is_active, created_at, updated_at)
		VALUES (lower($1), $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING `+userColumns,
		in.Email, in.Name, in.PrimariaID, passwordHash)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

// SetActive flips the account flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE actors SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, active)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u         User
		lastLogin pgtype.Timestamptz
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PrimariaID, &u.IsActive, &lastLogin, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return u, nil
}
