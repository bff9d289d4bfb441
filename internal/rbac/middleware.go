// Package rbac exposes capability checks as HTTP middleware.
package rbac

import (
	"log/slog"
	"net/http"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/platform/httpx"
	"github.com/classboard/classboard/internal/shared"
)

// Middleware wires capability authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAny ensures the current identity holds at least one of caps.
func (m Middleware) RequireAny(caps ...access.Capability) func(http.Handler) http.Handler {
	return m.require("rbac require any", caps, func(set access.CapabilitySet) bool { return set.HasAny(caps...) })
}

// RequireAll ensures the current identity holds every capability in caps.
func (m Middleware) RequireAll(caps ...access.Capability) func(http.Handler) http.Handler {
	return m.require("rbac require all", caps, func(set access.CapabilitySet) bool { return set.HasAll(caps...) })
}

func (m Middleware) require(op string, caps []access.Capability, ok func(access.CapabilitySet) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			ident, found := auth.IdentityFromContext(r.Context())
			if !found {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if ok(ident.Capabilities()) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Debug(op+" denied",
					slog.String("identity_id", ident.ID),
					slog.Any("required", caps),
					slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, access.Forbidden(access.ReasonMissingCapability, "missing capability"))
		})
	}
}
