package content

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/shared"
)

type voteKey struct{ poll, identity string }

type engageKey struct{ entity, identity string }

// memRepo mirrors the unique-key upsert semantics of the Postgres tables.
type memRepo struct {
	mu           sync.Mutex
	items        map[string]Item
	votes        map[voteKey]string
	likes        map[engageKey]struct{}
	participants map[engageKey]struct{}
	lastFilter   FeedFilter
}

func newMemRepo() *memRepo {
	return &memRepo{
		items:        map[string]Item{},
		votes:        map[voteKey]string{},
		likes:        map[engageKey]struct{}{},
		participants: map[engageKey]struct{}{},
	}
}

func (r *memRepo) Create(_ context.Context, item Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; ok {
		return shared.ErrConflict
	}
	r.items[item.ID] = item
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *memRepo) getLocked(id string) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, fmt.Errorf("content %s: %w", id, shared.ErrNotFound)
	}
	opts := make([]PollOption, len(it.Options))
	copy(opts, it.Options)
	for i := range opts {
		opts[i].Votes = 0
		for k, v := range r.votes {
			if k.poll == id && v == opts[i].ID {
				opts[i].Votes++
			}
		}
	}
	it.Options = opts
	it.Likes, it.Participants = 0, 0
	for k := range r.likes {
		if k.entity == id {
			it.Likes++
		}
	}
	for k := range r.participants {
		if k.entity == id {
			it.Participants++
		}
	}
	return it, nil
}

func (r *memRepo) Feed(_ context.Context, f FeedFilter) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = f
	classes := map[string]bool{}
	for _, c := range f.ClassIDs {
		classes[c] = true
	}
	var out []Item
	for id, it := range r.items {
		if it.ParentID != "" || (f.Kind != "" && it.Kind != f.Kind) || (it.Hidden && !f.IncludeHidden) {
			continue
		}
		match := (f.IncludeSchool && it.ClassID == "") || classes[it.ClassID] || (f.AllClasses && it.ClassID != "")
		if !match {
			continue
		}
		full, _ := r.getLocked(id)
		out = append(out, full)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) Comments(_ context.Context, parentID string) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Item
	for _, it := range r.items {
		if it.ParentID == parentID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) Update(_ context.Context, item Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return shared.ErrNotFound
	}
	r.items[item.ID] = item
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

func (r *memRepo) UpsertVote(_ context.Context, pollID, identityID, optionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votes[voteKey{pollID, identityID}] = optionID
	return nil
}

func (r *memRepo) ToggleLike(_ context.Context, postID, identityID string) (Toggle, error) {
	return r.toggle(r.likes, postID, identityID), nil
}

func (r *memRepo) ToggleParticipation(_ context.Context, eventID, identityID string) (Toggle, error) {
	return r.toggle(r.participants, eventID, identityID), nil
}

func (r *memRepo) toggle(set map[engageKey]struct{}, entity, identity string) Toggle {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := engageKey{entity, identity}
	_, had := set[k]
	if had {
		delete(set, k)
	} else {
		set[k] = struct{}{}
	}
	count := 0
	for key := range set {
		if key.entity == entity {
			count++
		}
	}
	return Toggle{Active: !had, Count: count}
}

type memIdem struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemIdem() *memIdem { return &memIdem{keys: map[string]string{}} }

func (m *memIdem) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[module+key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+key] = ""
	return nil
}

func (m *memIdem) Complete(_ context.Context, key, module, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[module+key] = resourceID
	return nil
}

func (m *memIdem) Lookup(_ context.Context, key, module string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[module+key]
	if !ok {
		return "", shared.ErrNotFound
	}
	if id == "" {
		return "", shared.ErrIdempotencyConflict
	}
	return id, nil
}

func (m *memIdem) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+key)
	return nil
}

type directory map[string]bool

func (d directory) LookupClass(_ context.Context, id string) (access.Class, error) {
	if !d[id] {
		return access.Class{}, shared.ErrNotFound
	}
	return access.Class{ID: id}, nil
}

type sink struct {
	mu     sync.Mutex
	events []access.AuditEvent
}

func (s *sink) Emit(_ context.Context, e access.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

func person(id, classID string, roles ...access.Role) access.Identity {
	ident := access.Identity{ID: id, DisplayName: id, ClassID: classID, Roles: []access.RoleAssignment{{Role: access.RoleStudent}}}
	for _, role := range roles {
		a, err := access.AssignmentFor(ident, role)
		if err != nil {
			panic(err)
		}
		ident.Roles = append(ident.Roles, a)
	}
	return ident
}
