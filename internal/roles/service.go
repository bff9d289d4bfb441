package roles

import (
	"context"

	"github.com/classboard/classboard/internal/access"
)

// Invalidator drops cached identity snapshots after a change.
type Invalidator interface {
	Invalidate(ctx context.Context, id string)
}

// Service grants and revokes role assignments. Every operation requires
// MANAGE_USERS.
type Service struct {
	store   Store
	classes access.ClassDirectory
	cache   Invalidator
	gate    *access.Gate
}

// NewService builds Service instance. classes and cache may be nil.
func NewService(store Store, classes access.ClassDirectory, cache Invalidator, gate *access.Gate) *Service {
	if gate == nil {
		gate = access.NewGate()
	}
	return &Service{store: store, classes: classes, cache: cache, gate: gate}
}

type mutation func(access.Identity, access.Role) (access.Identity, access.ToggleResult, error)

func grant(ident access.Identity, role access.Role) (access.Identity, access.ToggleResult, error) {
	next, a, err := access.Grant(ident, role)
	return next, access.ToggleResult{Added: true, Assignment: a}, err
}

func revoke(ident access.Identity, role access.Role) (access.Identity, access.ToggleResult, error) {
	next, a, err := access.Revoke(ident, role)
	return next, access.ToggleResult{Added: false, Assignment: a}, err
}

// Toggle grants role when absent and revokes it when held. Calling it twice
// restores the original assignments.
func (s *Service) Toggle(ctx context.Context, actor access.Identity, identityID string, role access.Role) (Change, error) {
	return s.apply(ctx, actor, identityID, role, access.Toggle)
}

// Add grants role. Granting a held role is a validation error.
func (s *Service) Add(ctx context.Context, actor access.Identity, identityID string, role access.Role) (Change, error) {
	return s.apply(ctx, actor, identityID, role, grant)
}

// Remove revokes role. Revoking a role that is not held is ErrNotFound.
func (s *Service) Remove(ctx context.Context, actor access.Identity, identityID string, role access.Role) (Change, error) {
	return s.apply(ctx, actor, identityID, role, revoke)
}

func (s *Service) apply(ctx context.Context, actor access.Identity, identityID string, role access.Role, op mutation) (Change, error) {
	if err := access.RequireCapability(actor, access.CapManageUsers); err != nil {
		s.deny(ctx, actor, identityID, role, err)
		return Change{}, err
	}
	if !role.Valid() {
		_, err := access.ParseRole(string(role))
		return Change{}, err
	}

	var change Change
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ident, err := tx.LockIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		next, res, err := op(ident, role)
		if err != nil {
			return err
		}
		if res.Added && res.Assignment.Scope.IsClass() && s.classes != nil {
			if _, err := s.classes.LookupClass(ctx, res.Assignment.Scope.ClassID); err != nil {
				return err
			}
		}
		if res.Added {
			err = tx.InsertAssignment(ctx, identityID, res.Assignment)
		} else {
			err = tx.DeleteAssignment(ctx, identityID, res.Assignment)
		}
		if err != nil {
			return err
		}
		change = Change{
			IdentityID: identityID,
			Role:       role,
			Scope:      res.Assignment.Scope,
			Added:      res.Added,
			Roles:      next.Roles,
		}
		return nil
	})
	if err != nil {
		return Change{}, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, identityID)
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  change.action(),
		Target:  "identity:" + identityID,
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"role": string(role), "scope": change.Scope.String()},
	})
	return change, nil
}

func (s *Service) deny(ctx context.Context, actor access.Identity, identityID string, role access.Role, err error) {
	if actor.Anonymous() {
		return
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "role.change",
		Target:  "identity:" + identityID,
		Outcome: access.OutcomeDenied,
		Meta:    map[string]any{"role": string(role), "reason": string(access.ReasonOf(err))},
	})
}
