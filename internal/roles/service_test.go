package roles

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/rbac"
	"github.com/classboard/classboard/internal/shared"
)

// memStore applies a transaction to a copy and publishes it on success.
type memStore struct {
	mu         sync.Mutex
	identities map[string]access.Identity
}

func newMemStore(idents ...access.Identity) *memStore {
	s := &memStore{identities: map[string]access.Identity{}}
	for _, ident := range idents {
		s.identities[ident.ID] = ident
	}
	return s
}

type memTx struct {
	staged map[string]access.Identity
}

func (s *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := make(map[string]access.Identity, len(s.identities))
	for k, v := range s.identities {
		v.Roles = append([]access.RoleAssignment(nil), v.Roles...)
		staged[k] = v
	}
	if err := fn(ctx, &memTx{staged: staged}); err != nil {
		return err
	}
	s.identities = staged
	return nil
}

func (t *memTx) LockIdentity(_ context.Context, id string) (access.Identity, error) {
	ident, ok := t.staged[id]
	if !ok {
		return access.Identity{}, fmt.Errorf("identity %s: %w", id, shared.ErrNotFound)
	}
	return ident, nil
}

func (t *memTx) InsertAssignment(_ context.Context, id string, a access.RoleAssignment) error {
	ident := t.staged[id]
	if ident.HasAssignment(a) {
		return shared.ErrConflict
	}
	ident.Roles = append(ident.Roles, a)
	t.staged[id] = ident
	return nil
}

func (t *memTx) DeleteAssignment(_ context.Context, id string, a access.RoleAssignment) error {
	ident := t.staged[id]
	kept := make([]access.RoleAssignment, 0, len(ident.Roles))
	found := false
	for _, r := range ident.Roles {
		if r == a && !found {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return shared.ErrNotFound
	}
	ident.Roles = kept
	t.staged[id] = ident
	return nil
}

type invalidations struct{ ids []string }

func (i *invalidations) Invalidate(_ context.Context, id string) { i.ids = append(i.ids, id) }

type directory map[string]bool

func (d directory) LookupClass(_ context.Context, id string) (access.Class, error) {
	if !d[id] {
		return access.Class{}, shared.ErrNotFound
	}
	return access.Class{ID: id}, nil
}

type sink struct{ events []access.AuditEvent }

func (s *sink) Emit(_ context.Context, e access.AuditEvent) { s.events = append(s.events, e) }

func baseline(id, classID string) access.Identity {
	return access.Identity{ID: id, DisplayName: id, ClassID: classID, Roles: []access.RoleAssignment{{Role: access.RoleStudent}}}
}

func adminActor() access.Identity {
	a := baseline("admin", "")
	a.Roles = append(a.Roles, access.RoleAssignment{Role: access.RoleAdmin, Scope: access.SchoolWide()})
	return a
}

type fixture struct {
	svc   *Service
	store *memStore
	inv   *invalidations
	sink  *sink
}

func newFixture(idents ...access.Identity) fixture {
	store := newMemStore(idents...)
	inv := &invalidations{}
	sk := &sink{}
	svc := NewService(store, directory{"1A": true}, inv, access.NewGate(access.WithAuditSink(sk)))
	return fixture{svc: svc, store: store, inv: inv, sink: sk}
}

func TestToggleTwiceIsNoOp(t *testing.T) {
	f := newFixture(baseline("u1", "1A"))
	ctx := context.Background()
	before := f.store.identities["u1"]

	for _, role := range []access.Role{access.RoleAdmin, access.RoleClassRep, access.RoleModerator} {
		c, err := f.svc.Toggle(ctx, adminActor(), "u1", role)
		require.NoError(t, err)
		assert.True(t, c.Added)

		c, err = f.svc.Toggle(ctx, adminActor(), "u1", role)
		require.NoError(t, err)
		assert.False(t, c.Added)
	}
	after := f.store.identities["u1"]
	assert.Equal(t, before.Capabilities(), after.Capabilities())
	assert.Equal(t, before.Roles, after.Roles)
	assert.Len(t, f.inv.ids, 6)
	assert.Equal(t, "role.grant", f.sink.events[0].Action)
	assert.Equal(t, "role.revoke", f.sink.events[1].Action)
}

func TestGrantClassRepRequiresAssignedClass(t *testing.T) {
	f := newFixture(baseline("u1", ""))
	_, err := f.svc.Toggle(context.Background(), adminActor(), "u1", access.RoleClassRep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Contains(t, err.Error(), "no class assigned")
	assert.Equal(t, baseline("u1", "").Roles, f.store.identities["u1"].Roles)
	assert.Empty(t, f.inv.ids)
}

func TestClassRepNeedsKnownClass(t *testing.T) {
	f := newFixture(baseline("u1", "9Z"))
	_, err := f.svc.Add(context.Background(), adminActor(), "u1", access.RoleClassRep)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.False(t, f.store.identities["u1"].HasRole(access.RoleClassRep))
}

func TestAddRemoveRules(t *testing.T) {
	f := newFixture(baseline("u1", "1A"))
	ctx := context.Background()

	c, err := f.svc.Add(ctx, adminActor(), "u1", access.RoleClassRep)
	require.NoError(t, err)
	assert.Equal(t, access.ClassScoped("1A"), c.Scope)

	_, err = f.svc.Add(ctx, adminActor(), "u1", access.RoleClassRep)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = f.svc.Remove(ctx, adminActor(), "u1", access.RoleSchoolRep)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = f.svc.Remove(ctx, adminActor(), "u1", access.RoleStudent)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = f.svc.Toggle(ctx, adminActor(), "ghost", access.RoleAdmin)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	_, err = f.svc.Toggle(ctx, adminActor(), "u1", access.Role("JANITOR"))
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestRequiresManageUsers(t *testing.T) {
	mod := baseline("mod", "")
	mod.Roles = append(mod.Roles, access.RoleAssignment{Role: access.RoleModerator, Scope: access.SchoolWide()})
	f := newFixture(baseline("u1", "1A"), mod)

	_, err := f.svc.Toggle(context.Background(), mod, "u1", access.RoleAdmin)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, access.OutcomeDenied, f.sink.events[0].Outcome)
}

func TestConcurrentTogglesStayConsistent(t *testing.T) {
	f := newFixture(baseline("u1", "1A"))
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Toggle(context.Background(), adminActor(), "u1", access.RoleModerator)
		}()
	}
	wg.Wait()
	assert.NoError(t, access.ValidateIdentity(f.store.identities["u1"]))
	assert.False(t, f.store.identities["u1"].HasRole(access.RoleModerator))
}

func TestHandlerToggle(t *testing.T) {
	f := newFixture(baseline("u1", "1A"))
	r := chi.NewRouter()
	NewHandler(nil, f.svc, rbac.Middleware{}).MountRoutes(r)

	send := func(method, path string, actor access.Identity) int {
		req := httptest.NewRequest(method, path, nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), actor))
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		return res.Code
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/identities/u1/roles/school_rep/toggle", adminActor()))
	assert.Equal(t, http.StatusBadRequest, send(http.MethodPut, "/identities/u1/roles/SCHOOL_REP", adminActor()))
	assert.Equal(t, http.StatusOK, send(http.MethodDelete, "/identities/u1/roles/SCHOOL_REP", adminActor()))
	assert.Equal(t, http.StatusBadRequest, send(http.MethodPut, "/identities/u1/roles/principal", adminActor()))
	assert.Equal(t, http.StatusForbidden, send(http.MethodPut, "/identities/u1/roles/ADMIN", baseline("u1", "1A")))
}
