package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/primaria-digitala/registru/internal/audit"
	audithttp "github.com/primaria-digitala/registru/internal/audit/http"
	"github.com/primaria-digitala/registru/internal/auth"
	"github.com/primaria-digitala/registru/internal/departments"
	"github.com/primaria-digitala/registru/internal/observability"
	"github.com/primaria-digitala/registru/internal/rbac"
	"github.com/primaria-digitala/registru/internal/registers"
	"github.com/primaria-digitala/registru/internal/users"
	"github.com/primaria-digitala/registru/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Authorizer         *auth.Authorizer
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RegistersHandler   *registers.Handler
	DepartmentsHandler *departments.Handler
	AuditHandler       *audithttp.Handler
	PermissionsHandler *rbac.Handler
	JobsHandler        *jobs.Handler
	RBACMiddleware     rbac.Middleware
	Auditor            audit.Recorder
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Authorizer.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(LoginRateLimiter())
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/registers", params.RegistersHandler.MountRoutes)

		r.Route("/departments", func(r chi.Router) {
			params.DepartmentsHandler.MountRoutes(r, params.RBACMiddleware.RequireLevel(7))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(rbac.PermUtilizatoriAdministrare))
			params.UsersHandler.MountRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(rbac.PermRoluriAdministrare))
			params.PermissionsHandler.MountRoutes(r)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAny(rbac.PermAuditVizualizare))
			params.AuditHandler.MountRoutes(r)
		})

		if params.JobsHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireLevel(7))
				params.JobsHandler.MountRoutes(r)
			})
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
