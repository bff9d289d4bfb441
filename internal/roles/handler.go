package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/platform/httpx"
	"github.com/classboard/classboard/internal/rbac"
	"github.com/classboard/classboard/internal/shared"
)

// Handler manages role assignment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(access.CapManageUsers))
		r.Post("/identities/{id}/roles/{role}/toggle", h.toggleRole)
		r.Put("/identities/{id}/roles/{role}", h.addRole)
		r.Delete("/identities/{id}/roles/{role}", h.removeRole)
	})
}

func (h *Handler) toggleRole(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "toggle role", func(r *http.Request, actor access.Identity, id string, role access.Role) (Change, error) {
		return h.service.Toggle(r.Context(), actor, id, role)
	})
}

func (h *Handler) addRole(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "add role", func(r *http.Request, actor access.Identity, id string, role access.Role) (Change, error) {
		return h.service.Add(r.Context(), actor, id, role)
	})
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "remove role", func(r *http.Request, actor access.Identity, id string, role access.Role) (Change, error) {
		return h.service.Remove(r.Context(), actor, id, role)
	})
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, op string, fn func(*http.Request, access.Identity, string, access.Role) (Change, error)) {
	role, err := access.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	change, err := fn(r, auth.CurrentIdentity(r), chi.URLParam(r, "id"), role)
	if err != nil {
		if shared.UserSafeMessage(err) == "internal error" {
			h.logger.Error(op+" failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}
