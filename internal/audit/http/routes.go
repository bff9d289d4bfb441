package audithttp

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
)

// Exports scan the whole filtered range, so they get a tighter budget than
// the timeline.
const (
	exportsPerWindow = 10
	exportWindow     = time.Minute
)

// MountRoutes registers the audit timeline and CSV export endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(access.CapModeratePlatform))
		r.Get("/audit", h.handleTimeline)
		r.With(auth.RateLimit(exportsPerWindow, exportWindow)).Get("/audit/export.csv", h.handleExport)
	})
}
