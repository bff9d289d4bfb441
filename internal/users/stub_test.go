package users

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/shared"
)

type memRepo struct {
	mu    sync.Mutex
	items map[string]Identity
	gets  atomic.Int32
}

func newMemRepo(seed ...Identity) *memRepo {
	r := &memRepo{items: map[string]Identity{}}
	for _, ident := range seed {
		r.items[ident.ID] = ident
	}
	return r
}

func (r *memRepo) Get(_ context.Context, id string) (Identity, error) {
	r.gets.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.items[id]
	if !ok {
		return Identity{}, fmt.Errorf("identity %s: %w", id, shared.ErrNotFound)
	}
	return ident, nil
}

func (r *memRepo) List(_ context.Context, limit, offset int) ([]Identity, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]Identity, 0, len(r.items))
	for _, ident := range r.items {
		all = append(all, ident)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DisplayName < all[j].DisplayName })
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *memRepo) Create(_ context.Context, ident Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if ident.Email != "" && existing.Email == ident.Email {
			return shared.ErrConflict
		}
	}
	ident.CreatedAt = time.Now()
	r.items[ident.ID] = ident
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) AssignClass(_ context.Context, id, classID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	ident.ClassID = classID
	kept := ident.Roles[:0:0]
	for _, a := range ident.Roles {
		if a.Role == access.RoleClassRep && a.Scope.ClassID != classID {
			continue
		}
		kept = append(kept, a)
	}
	ident.Roles = kept
	r.items[id] = ident
	return nil
}

type stubDirectory map[string]bool

func (d stubDirectory) LookupClass(_ context.Context, id string) (access.Class, error) {
	if !d[id] {
		return access.Class{}, shared.ErrNotFound
	}
	return access.Class{ID: id}, nil
}

func studentRecord(id, classID string, extra ...access.RoleAssignment) Identity {
	return Identity{
		ID:          id,
		DisplayName: id,
		ClassID:     classID,
		Roles:       append([]access.RoleAssignment{{Role: access.RoleStudent}}, extra...),
	}
}

func adminIdentity() access.Identity {
	return studentRecord("admin", "", access.RoleAssignment{Role: access.RoleAdmin, Scope: access.SchoolWide()}).Access()
}
