package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
)

func identityWith(roles ...access.RoleAssignment) access.Identity {
	return access.Identity{ID: "u1", ClassID: "1A", Roles: append([]access.RoleAssignment{{Role: access.RoleStudent}}, roles...)}
}

func serve(h http.Handler, ident access.Identity) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if !ident.Anonymous() {
		req = req.WithContext(auth.WithIdentity(req.Context(), ident))
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res.Code
}

func TestRequireAll(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware{}.RequireAll(access.CapManageUsers)(ok)

	assert.Equal(t, http.StatusUnauthorized, serve(h, access.Identity{}))
	assert.Equal(t, http.StatusForbidden, serve(h, identityWith()))
	assert.Equal(t, http.StatusNoContent, serve(h, identityWith(access.RoleAssignment{Role: access.RoleAdmin, Scope: access.SchoolWide()})))
}

func TestRequireAny(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware{}.RequireAny(access.CapModeratePlatform, access.CapModerateClassContent)(ok)

	rep := identityWith(access.RoleAssignment{Role: access.RoleClassRep, Scope: access.ClassScoped("1A")})
	assert.Equal(t, http.StatusNoContent, serve(h, rep))
	assert.Equal(t, http.StatusForbidden, serve(h, identityWith()))

	open := Middleware{}.RequireAny()(ok)
	assert.Equal(t, http.StatusNoContent, serve(open, access.Identity{}))
}

func TestCapabilityCatalogue(t *testing.T) {
	r := chi.NewRouter()
	NewPermissionsHandler(nil).MountRoutes(r)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/capabilities", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Capabilities []string           `json:"capabilities"`
		Roles        []RoleCapabilities `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Len(t, body.Capabilities, len(access.AllCapabilities()))
	require.Len(t, body.Roles, len(access.AllRoles()))
	assert.Contains(t, body.Roles[len(body.Roles)-1].Capabilities, access.CapManageUsers)
}
