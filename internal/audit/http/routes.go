package audithttp

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the audit timeline endpoints. The caller is
// expected to guard the group with the audit view permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleTimeline)
	r.Get("/export", h.handleExport)
}
