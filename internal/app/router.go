package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/classboard/classboard/internal/access"
	audithttp "github.com/classboard/classboard/internal/audit/http"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/classes"
	"github.com/classboard/classboard/internal/content"
	"github.com/classboard/classboard/internal/moderation"
	"github.com/classboard/classboard/internal/observability"
	"github.com/classboard/classboard/internal/rbac"
	"github.com/classboard/classboard/internal/roles"
	"github.com/classboard/classboard/internal/users"
	"github.com/classboard/classboard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthMiddleware auth.Middleware
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	ClassesHandler     *classes.Handler
	RolesHandler       *roles.Handler
	ContentHandler     *content.Handler
	ModerationHandler  *moderation.Handler
	AuditHandler       *audithttp.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with classboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.AuthMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireIdentity)
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.ClassesHandler != nil {
			params.ClassesHandler.MountRoutes(r)
		}
		if params.RolesHandler != nil {
			params.RolesHandler.MountRoutes(r)
		}
		if params.ContentHandler != nil {
			params.ContentHandler.MountRoutes(r)
		}
		if params.ModerationHandler != nil {
			params.ModerationHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.PermissionsHandler != nil {
			params.PermissionsHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireAll(access.CapModeratePlatform))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
