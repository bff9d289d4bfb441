package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/internal/access"
	jobmetrics "github.com/classboard/classboard/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("audit:record").End(nil)

	assert.Contains(t, scrape(t, metrics), `classboard_jobs_total{job="audit:record",status="success"} 1`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `classboard_http_requests_total{code="418",method="GET",route="/test"} 1`)
	assert.Contains(t, body, `classboard_http_request_duration_seconds_bucket{route="/test"`)
}

func TestGateDecisionsAreCounted(t *testing.T) {
	metrics := NewMetrics()
	gate := access.NewGate(access.WithObserver(metrics))

	student := access.Identity{ID: "s", ClassID: "1A", Roles: []access.RoleAssignment{{Role: access.RoleStudent}}}
	gate.CanCreate(student, access.KindPost, access.SchoolWide())
	gate.CanCreate(student, access.KindPost, access.ClassScoped("1A"))
	gate.CanCreate(student, access.KindPost, access.ClassScoped("1A"))

	body := scrape(t, metrics)
	assert.Contains(t, body, `classboard_access_decisions_total{kind="post",op="create",outcome="allowed",reason="allowed"} 2`)
	assert.Contains(t, body, `classboard_access_decisions_total{kind="post",op="create",outcome="denied"`)
}

func TestMiddlewareLabelsUnroutedRequests(t *testing.T) {
	metrics := NewMetrics()
	metrics.Middleware(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	body := scrape(t, metrics)
	assert.Contains(t, body, `classboard_http_requests_total{code="404",method="GET",route="unmatched"} 1`)
	assert.NotContains(t, body, "wp-login")
	assert.Contains(t, body, "go_goroutines")
}
