package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/platform/httpx"
)

// RoleCapabilities pairs a role with the capabilities it grants.
type RoleCapabilities struct {
	Role         access.Role         `json:"role"`
	Capabilities []access.Capability `json:"capabilities"`
}

// PermissionsHandler exposes the capability catalogue.
type PermissionsHandler struct {
	logger *slog.Logger
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger) *PermissionsHandler {
	return &PermissionsHandler{logger: logger}
}

// MountRoutes registers capability routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/capabilities", h.listCapabilities)
	r.Get("/me/capabilities", h.myCapabilities)
}

// Catalogue lists every role with its resolved capabilities.
func Catalogue() []RoleCapabilities {
	roles := access.AllRoles()
	out := make([]RoleCapabilities, 0, len(roles))
	for _, role := range roles {
		out = append(out, RoleCapabilities{Role: role, Capabilities: access.Resolve([]access.Role{role}).Slice()})
	}
	return out
}

func (h *PermissionsHandler) listCapabilities(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"capabilities": access.AllCapabilities(),
		"roles":        Catalogue(),
	})
}

func (h *PermissionsHandler) myCapabilities(w http.ResponseWriter, r *http.Request) {
	ident := auth.CurrentIdentity(r)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"identity_id":  ident.ID,
		"roles":        ident.RoleSet(),
		"capabilities": ident.Capabilities().Slice(),
	})
}
