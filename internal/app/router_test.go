package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/classboard/classboard/internal/observability"
	"github.com/classboard/classboard/internal/rbac"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	return NewRouter(RouterParams{
		Config:             &Config{RateLimitPerMinute: 100},
		Metrics:            observability.NewMetrics(),
		PermissionsHandler: rbac.NewPermissionsHandler(nil),
	})
}

func TestRouterHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouterAPIRequiresIdentity(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/capabilities", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterRejectsMalformedAuthorization(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	testRouter(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterExposesMetrics(t *testing.T) {
	h := testRouter(t)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "classboard_http_requests_total")
}
