package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
)

func newTestRouter(t *testing.T) (*chi.Mux, *fixture) {
	t.Helper()
	f := newFixture(t)
	r := chi.NewRouter()
	NewHandler(nil, f.svc).MountRoutes(r)
	return r, f
}

func do(r http.Handler, actor access.Identity, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if !actor.Anonymous() {
		req = req.WithContext(auth.WithIdentity(req.Context(), actor))
	}
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func TestHandlerCreateAndFeed(t *testing.T) {
	r, _ := newTestRouter(t)
	s := person("s1", "1A")

	res := do(r, s, http.MethodPost, "/content/", `{"kind":"post","scope":"school","body":"hi"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = do(r, s, http.MethodPost, "/content/", `{"kind":"post","scope":"class","body":"hi"}`, IdempotencyHeader, "abc")
	require.Equal(t, http.StatusCreated, res.Code)
	var created Item
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(t, "1A", created.ClassID)

	res = do(r, s, http.MethodPost, "/content/", `{"kind":"post","scope":"class","body":"hi"}`, IdempotencyHeader, "abc")
	require.Equal(t, http.StatusCreated, res.Code)
	var replay Item
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &replay))
	assert.Equal(t, created.ID, replay.ID)

	res = do(r, s, http.MethodGet, "/content/?kind=post", "")
	require.Equal(t, http.StatusOK, res.Code)
	var feed struct {
		Items []Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &feed))
	assert.Len(t, feed.Items, 1)

	assert.Equal(t, http.StatusForbidden, do(r, s, http.MethodGet, "/content/?class_id=1B", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, access.Identity{}, http.MethodGet, "/content/", "").Code)
}

func TestHandlerRejectsMalformedBodies(t *testing.T) {
	r, _ := newTestRouter(t)
	s := person("s1", "1A")

	assert.Equal(t, http.StatusBadRequest, do(r, s, http.MethodPost, "/content/", `{"kind":"story","scope":"class"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, s, http.MethodPost, "/content/", `{"kind":"post","scope":"class","extra":1}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, s, http.MethodGet, "/content/missing", "").Code)
}

func TestHandlerEngagement(t *testing.T) {
	r, f := newTestRouter(t)
	post := f.create(t, person("a", "1A"), CreateInput{Kind: "post", Scope: ScopeClass, Body: "x"})
	poll := newPoll(t, f)
	u := person("b", "1A")

	res := do(r, u, http.MethodPost, "/content/"+post.ID+"/like", "")
	require.Equal(t, http.StatusOK, res.Code)
	var tog Toggle
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &tog))
	assert.True(t, tog.Active)

	res = do(r, u, http.MethodPut, "/content/"+poll.ID+"/vote", `{"option_id":"`+poll.Options[1].ID+`"}`)
	assert.Equal(t, http.StatusOK, res.Code)

	res = do(r, u, http.MethodPost, "/content/"+post.ID+"/comments", `{"body":"nice"}`)
	assert.Equal(t, http.StatusCreated, res.Code)
	res = do(r, person("c", "1B"), http.MethodGet, "/content/"+post.ID+"/comments", "")
	assert.Equal(t, http.StatusForbidden, res.Code)

	assert.Equal(t, http.StatusForbidden, do(r, u, http.MethodDelete, "/content/"+post.ID, "").Code)
	assert.Equal(t, http.StatusNoContent, do(r, person("a", "1A"), http.MethodDelete, "/content/"+post.ID, "").Code)

	_, err := f.repo.Get(context.Background(), post.ID)
	assert.Error(t, err)
}
