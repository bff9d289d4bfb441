package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
)

func TestRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	key, err := auth.RateLimitKey(req)
	require.NoError(t, err)
	assert.Equal(t, "ip:203.0.113.9", key)

	ident := access.Identity{ID: "u1", Roles: []access.RoleAssignment{{Role: access.RoleStudent}}}
	key, err = auth.RateLimitKey(req.WithContext(auth.WithIdentity(req.Context(), ident)))
	require.NoError(t, err)
	assert.Equal(t, "identity:u1", key)
}

func TestRateLimitAnswersWithProblem(t *testing.T) {
	h := auth.RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusNoContent, call().Code)
	res := call()
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Contains(t, res.Body.String(), "rate limited")
}
