package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/shared"
)

// Service provisions identities. Mutations require MANAGE_USERS.
type Service struct {
	repo    Repository
	loader  *Loader
	classes access.ClassDirectory
	gate    *access.Gate
	newID   func() string
}

// NewService builds Service instance.
func NewService(repo Repository, loader *Loader, classes access.ClassDirectory, gate *access.Gate) *Service {
	if gate == nil {
		gate = access.NewGate()
	}
	return &Service{
		repo:    repo,
		loader:  loader,
		classes: classes,
		gate:    gate,
		newID:   func() string { return uuid.NewString() },
	}
}

// Get returns an identity. Identities may read themselves; anyone else
// needs MANAGE_USERS.
func (s *Service) Get(ctx context.Context, actor access.Identity, id string) (Profile, error) {
	if actor.Anonymous() {
		return Profile{}, shared.ErrUnauthenticated
	}
	if actor.ID != id {
		if err := access.RequireCapability(actor, access.CapManageUsers); err != nil {
			return Profile{}, err
		}
	}
	ident, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return NewProfile(ident), nil
}

// List returns a page of identities.
func (s *Service) List(ctx context.Context, actor access.Identity, page shared.Pagination) (ListResult, shared.Pagination, error) {
	if err := access.RequireCapability(actor, access.CapManageUsers); err != nil {
		return ListResult{}, page, err
	}
	items, total, err := s.repo.List(ctx, page.PerPage, page.Offset())
	if err != nil {
		return ListResult{}, page, err
	}
	if items == nil {
		items = []Identity{}
	}
	return ListResult{Items: items, Total: total}, page.WithTotal(total), nil
}

// Create provisions an identity holding only the STUDENT baseline.
func (s *Service) Create(ctx context.Context, actor access.Identity, in CreateInput) (Identity, error) {
	if err := access.RequireCapability(actor, access.CapManageUsers); err != nil {
		return Identity{}, err
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.ClassID = strings.TrimSpace(in.ClassID)
	if in.DisplayName == "" {
		return Identity{}, fmt.Errorf("%w: display name required", shared.ErrValidation)
	}
	if err := s.ensureClass(ctx, in.ClassID); err != nil {
		return Identity{}, err
	}

	ident := Identity{
		ID:          s.newID(),
		DisplayName: in.DisplayName,
		Email:       in.Email,
		ClassID:     in.ClassID,
		Roles:       []access.RoleAssignment{{Role: access.RoleStudent}},
	}
	if err := s.repo.Create(ctx, ident); err != nil {
		return Identity{}, err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "identity.create",
		Target:  "identity:" + ident.ID,
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"class_id": ident.ClassID},
	})
	return s.repo.Get(ctx, ident.ID)
}

// Delete removes an identity with all of its assignments.
func (s *Service) Delete(ctx context.Context, actor access.Identity, id string) error {
	if err := access.RequireCapability(actor, access.CapManageUsers); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "identity.delete",
		Target:  "identity:" + id,
		Outcome: access.OutcomeExecuted,
	})
	return nil
}

// AssignClass moves an identity into a class. A CLASS_REP assignment for
// the previous class is revoked so the scope invariant keeps holding.
func (s *Service) AssignClass(ctx context.Context, actor access.Identity, id string, in AssignClassInput) (Identity, error) {
	if err := access.RequireCapability(actor, access.CapManageUsers); err != nil {
		return Identity{}, err
	}
	classID := strings.TrimSpace(in.ClassID)
	if err := s.ensureClass(ctx, classID); err != nil {
		return Identity{}, err
	}
	if err := s.repo.AssignClass(ctx, id, classID); err != nil {
		return Identity{}, err
	}
	s.invalidate(ctx, id)
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "identity.assign_class",
		Target:  "identity:" + id,
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"class_id": classID},
	})
	return s.repo.Get(ctx, id)
}

func (s *Service) ensureClass(ctx context.Context, classID string) error {
	if classID == "" || s.classes == nil {
		return nil
	}
	if _, err := s.classes.LookupClass(ctx, classID); err != nil {
		return fmt.Errorf("users: class %s: %w", classID, err)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.loader != nil {
		s.loader.Invalidate(ctx, id)
	}
}
