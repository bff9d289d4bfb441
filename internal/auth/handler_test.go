package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/shared"
	_ "github.com/classboard/classboard/internal/testing/guard"
)

type stubRepo struct {
	mu     sync.Mutex
	tokens map[string]auth.Token
}

func newStubRepo() *stubRepo { return &stubRepo{tokens: map[string]auth.Token{}} }

func (s *stubRepo) CreateToken(_ context.Context, token auth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
	return nil
}

func (s *stubRepo) FindToken(_ context.Context, id string) (auth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return auth.Token{}, shared.ErrNotFound
	}
	return token, nil
}

func (s *stubRepo) TouchToken(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.tokens[id]
	token.LastUsedAt = &at
	s.tokens[id] = token
	return nil
}

func (s *stubRepo) RevokeToken(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return shared.ErrNotFound
	}
	token.RevokedAt = &at
	s.tokens[id] = token
	return nil
}

type stubLoader map[string]access.Identity

func (l stubLoader) Load(_ context.Context, id string) (access.Identity, error) {
	ident, ok := l[id]
	if !ok {
		return access.Identity{}, shared.ErrNotFound
	}
	return ident, nil
}

func student(id, classID string) access.Identity {
	return access.Identity{ID: id, DisplayName: id, ClassID: classID, Roles: []access.RoleAssignment{{Role: access.RoleStudent}}}
}

func admin(id string) access.Identity {
	ident := student(id, "")
	ident.Roles = append(ident.Roles, access.RoleAssignment{Role: access.RoleAdmin, Scope: access.SchoolWide()})
	return ident
}

func newService(t *testing.T) (*auth.Service, *stubRepo, stubLoader) {
	t.Helper()
	repo := newStubRepo()
	loader := stubLoader{"s1": student("s1", "1A"), "s2": student("s2", "1B"), "admin": admin("admin")}
	return auth.NewService(repo, loader, auth.WithHashCost(bcrypt.MinCost)), repo, loader
}

func TestIssueAndAuthenticate(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, student("s1", "1A"), "s1", auth.IssueInput{Label: "laptop"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.Plaintext, issued.ID+"."))
	assert.NotContains(t, repo.tokens[issued.ID].SecretHash, strings.TrimPrefix(issued.Plaintext, issued.ID+"."))

	ident, err := svc.Authenticate(ctx, issued.Plaintext)
	require.NoError(t, err)
	assert.Equal(t, "s1", ident.ID)
	assert.NotNil(t, repo.tokens[issued.ID].LastUsedAt)
}

func TestAuthenticateRejects(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	issued, err := svc.Issue(ctx, student("s1", "1A"), "s1", auth.IssueInput{})
	require.NoError(t, err)

	for _, raw := range []string{"", "nodot", issued.ID + ".wrong", "missing.secret"} {
		_, err := svc.Authenticate(ctx, raw)
		assert.Truef(t, errors.Is(err, shared.ErrInvalidCredentials), "raw %q", raw)
	}

	require.NoError(t, svc.Revoke(ctx, student("s1", "1A"), issued.ID))
	_, err = svc.Authenticate(ctx, issued.Plaintext)
	assert.True(t, errors.Is(err, shared.ErrInvalidCredentials))
}

func TestIssueForOthersRequiresManageUsers(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, student("s1", "1A"), "s2", auth.IssueInput{})
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	_, err = svc.Issue(ctx, admin("admin"), "s2", auth.IssueInput{})
	assert.NoError(t, err)

	_, err = svc.Issue(ctx, access.Identity{}, "s2", auth.IssueInput{})
	assert.True(t, errors.Is(err, shared.ErrUnauthenticated))

	_, err = svc.Issue(ctx, admin("admin"), "ghost", auth.IssueInput{})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestRevokeOthersTokenForbidden(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	issued, err := svc.Issue(ctx, student("s1", "1A"), "s1", auth.IssueInput{})
	require.NoError(t, err)

	err = svc.Revoke(ctx, student("s2", "1B"), issued.ID)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
	assert.NoError(t, svc.Revoke(ctx, admin("admin"), issued.ID))
}

func TestMiddleware(t *testing.T) {
	svc, _, _ := newService(t)
	issued, err := svc.Issue(context.Background(), student("s1", "1A"), "s1", auth.IssueInput{})
	require.NoError(t, err)

	mw := auth.Middleware{Service: svc}
	var seen access.Identity
	h := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.CurrentIdentity(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.True(t, seen.Anonymous())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Plaintext)
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, "s1", seen.ID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = httptest.NewRecorder()
	auth.RequireIdentity(h).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestHandlerIssue(t *testing.T) {
	svc, _, _ := newService(t)
	r := chi.NewRouter()
	auth.NewHandler(nil, svc).MountRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/identities/s1/tokens", strings.NewReader(`{"label":"cli"}`))
	req = req.WithContext(auth.WithIdentity(req.Context(), student("s1", "1A")))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "cli", body["label"])
	assert.NotEmpty(t, body["token"])
	assert.NotContains(t, body, "SecretHash")

	req = httptest.NewRequest(http.MethodPost, "/identities/s2/tokens", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), student("s1", "1A")))
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
}
