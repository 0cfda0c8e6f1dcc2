package departments

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/primaria-digitala/registru/internal/audit"
	"github.com/primaria-digitala/registru/internal/auth"
	"github.com/primaria-digitala/registru/internal/platform/httpx"
)

// Department is an organizational unit of a primarie. Registers hang
// off departments.
type Department struct {
	ID         int64     `json:"id"`
	PrimariaID int64     `json:"primaria_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository provides PostgreSQL backed persistence for departments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns the departments of one primarie ordered by name.
func (r *Repository) List(ctx context.Context, primariaID int64) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, primaria_id, name, created_at
		FROM departments WHERE primaria_id = $1 ORDER BY name`, primariaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		var (
			d         Department
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&d.ID, &d.PrimariaID, &d.Name, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = createdAt.Time
		out = append(out, d)
	}
	return out, rows.Err()
}

// Insert creates a department.
func (r *Repository) Insert(ctx context.Context, primariaID int64, name string) (Department, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO departments (primaria_id, name, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, primaria_id, name, created_at`, primariaID, name)
	var (
		d         Department
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&d.ID, &d.PrimariaID, &d.Name, &createdAt); err != nil {
		return Department{}, err
	}
	d.CreatedAt = createdAt.Time
	return d, nil
}

// RepositoryPort defines the persistence contract the handler needs.
type RepositoryPort interface {
	List(ctx context.Context, primariaID int64) ([]Department, error)
	Insert(ctx context.Context, primariaID int64, name string) (Department, error)
}

// Handler exposes the department endpoints.
type Handler struct {
	logger  *slog.Logger
	repo    RepositoryPort
	auditor audit.Recorder
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo RepositoryPort, auditor audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo, auditor: auditor}
}

// MountRoutes registers the department routes. Creation is gated
// behind a minimum access level supplied by the caller.
func (h *Handler) MountRoutes(r chi.Router, createGuard func(http.Handler) http.Handler) {
	r.Get("/", h.List)
	r.With(createGuard).Post("/", h.Create)
}

// List returns the departments of the caller's primarie.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "autentificare necesara")
		return
	}
	deps, err := h.repo.List(r.Context(), identity.PrimariaID)
	if err != nil {
		h.logger.Error("list departments", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": deps})
}

type createRequest struct {
	Name string `json:"name"`
}

// Create opens a new department.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "autentificare necesara")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.recordFailure(r, identity.ActorID, "corp_invalid")
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "corp JSON invalid")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		h.recordFailure(r, identity.ActorID, "nume_lipsa")
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "numele departamentului este obligatoriu")
		return
	}
	dep, err := h.repo.Insert(r.Context(), identity.PrimariaID, req.Name)
	if err != nil {
		h.logger.Error("create department", slog.Any("error", err))
		h.recordFailure(r, identity.ActorID, "eroare_interna")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if h.auditor != nil {
		h.auditor.Record(r.Context(), audit.Entry{
			Action:    audit.ActionDepartmentCreate,
			ActorID:   &identity.ActorID,
			Detail:    map[string]any{"departament_id": dep.ID, "nume": dep.Name},
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
	}
	httpx.JSON(w, http.StatusCreated, dep)
}

// recordFailure writes the single audit entry owed to a rejected
// creation attempt.
func (h *Handler) recordFailure(r *http.Request, actorID int64, reason string) {
	if h.auditor == nil {
		return
	}
	h.auditor.Record(r.Context(), audit.Entry{
		Action:    audit.ActionDepartmentCreate,
		ActorID:   &actorID,
		Detail:    map[string]any{"esuat": true, "motiv": reason},
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
}
