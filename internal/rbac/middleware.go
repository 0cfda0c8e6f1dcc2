package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/primaria-digitala/registru/internal/audit"
	"github.com/primaria-digitala/registru/internal/auth"
	"github.com/primaria-digitala/registru/internal/platform/httpx"
)

// Middleware provides the per-route authorization checks. All
// decisions read the identity injected by the request authorizer;
// storage is never consulted here, so permission changes made after
// token issuance take effect only at the next login.
type Middleware struct {
	Logger  *slog.Logger
	Auditor audit.Recorder
}

// RequireAny allows the request through when the identity holds at
// least one of the named permissions (logical OR). A denied attempt is
// answered with 403 and recorded in the audit trail.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "autentificare necesara")
				return
			}
			if identity.HasAny(perms...) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, identity, map[string]any{
				"permisiuni_necesare": strings.Join(perms, ","),
			})
		})
	}
}

// RequireLevel allows the request through when the identity's access
// level is at least the given tier.
func (m Middleware) RequireLevel(level int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "autentificare necesara")
				return
			}
			if identity.AccessLevel >= level {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, identity, map[string]any{
				"nivel_necesar": level,
				"nivel_actual":  identity.AccessLevel,
			})
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, identity *auth.Identity, detail map[string]any) {
	detail["cale"] = r.URL.Path
	detail["metoda"] = r.Method
	if m.Auditor != nil {
		m.Auditor.Record(r.Context(), audit.Entry{
			Action:    audit.ActionAccessDenied,
			ActorID:   &identity.ActorID,
			Detail:    detail,
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
	}
	if m.Logger != nil {
		m.Logger.Warn("access denied",
			slog.Int64("actor_id", identity.ActorID),
			slog.String("path", r.URL.Path))
	}
	httpx.Problem(w, http.StatusForbidden, "Forbidden", fmt.Sprintf("permisiuni insuficiente pentru %s", r.URL.Path))
}
