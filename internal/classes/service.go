package classes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/shared"
)

// Service handles class directory business logic.
type Service struct {
	repo  Repository
	gate  *access.Gate
	now   func() time.Time
	newID func() string
}

// NewService builds Service instance.
func NewService(repo Repository, gate *access.Gate) *Service {
	if gate == nil {
		gate = access.NewGate()
	}
	return &Service{
		repo:  repo,
		gate:  gate,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

// List returns every class. Any authenticated identity may list.
func (s *Service) List(ctx context.Context, actor access.Identity) ([]Class, error) {
	if actor.Anonymous() {
		return nil, shared.ErrUnauthenticated
	}
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Class{}
	}
	return items, nil
}

// Create registers a class. Requires MANAGE_USERS.
func (s *Service) Create(ctx context.Context, actor access.Identity, in CreateInput) (Class, error) {
	if err := access.RequireCapability(actor, access.CapManageUsers); err != nil {
		return Class{}, err
	}
	section := NormalizeSection(in.Section)
	if in.Year <= 0 || section == "" {
		return Class{}, fmt.Errorf("%w: year and section required", shared.ErrValidation)
	}
	class := Class{ID: s.newID(), Year: in.Year, Section: section, CreatedAt: s.now()}
	if err := s.repo.Create(ctx, class); err != nil {
		return Class{}, err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "class.create",
		Target:  "class:" + class.ID,
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"name": class.Name()},
	})
	return class, nil
}

// Delete removes a class that nothing references. Requires MANAGE_USERS.
func (s *Service) Delete(ctx context.Context, actor access.Identity, id string) error {
	if err := access.RequireCapability(actor, access.CapManageUsers); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "class.delete",
		Target:  "class:" + id,
		Outcome: access.OutcomeExecuted,
	})
	return nil
}
