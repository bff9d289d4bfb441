package classes

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

// Handler manages class directory endpoints.
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

// MountRoutes registers class routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/classes", h.listClasses)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(access.CapManageUsers))
		r.Post("/classes", h.createClass)
		r.Delete("/classes/{id}", h.deleteClass)
	})
}

func (h *Handler) listClasses(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), auth.CurrentIdentity(r))
	if err != nil {
		h.fail(w, "list classes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createClass(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	class, err := h.service.Create(r.Context(), auth.CurrentIdentity(r), in)
	if err != nil {
		h.fail(w, "create class", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, class)
}

func (h *Handler) deleteClass(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), auth.CurrentIdentity(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete class", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.UserSafeMessage(err) == "internal error" {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
