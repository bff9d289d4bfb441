package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/content"
	"github.com/classboard/classboard/internal/shared"
)

const defaultListLimit = 50

// ContentReader returns an item the actor may view.
type ContentReader interface {
	Get(ctx context.Context, actor access.Identity, id string) (content.Item, error)
}

// Service runs the report workflow.
type Service struct {
	repo    Repository
	content ContentReader
	gate    *access.Gate
	now     func() time.Time
	newID   func() string
}

// NewService builds Service instance.
func NewService(repo Repository, reader ContentReader, gate *access.Gate) *Service {
	if gate == nil {
		gate = access.NewGate()
	}
	return &Service{
		repo:    repo,
		content: reader,
		gate:    gate,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// CreateReport files a report against an item the reporter can see.
func (s *Service) CreateReport(ctx context.Context, actor access.Identity, in CreateReportInput) (Report, error) {
	if err := access.RequireCapability(actor, access.CapComment); err != nil {
		return Report{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Report{}, fmt.Errorf("%w: reason required", shared.ErrValidation)
	}
	item, err := s.content.Get(ctx, actor, strings.TrimSpace(in.ContentID))
	if err != nil {
		return Report{}, err
	}
	rep := Report{
		ID:         s.newID(),
		ReporterID: actor.ID,
		Target:     ContentRef{Kind: item.Kind, ID: item.ID},
		Reason:     reason,
		Status:     StatusOpen,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return Report{}, err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "report.create",
		Target:  "report:" + rep.ID,
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"content": rep.Target.String()},
	})
	return rep, nil
}

// ListReports lists reports for platform moderators, open ones by default.
func (s *Service) ListReports(ctx context.Context, actor access.Identity, filter ListFilter) ([]Report, error) {
	if err := access.RequireCapability(actor, access.CapModeratePlatform); err != nil {
		return nil, err
	}
	switch filter.Status {
	case "":
		filter.Status = StatusOpen
	case StatusOpen, StatusDismissed, StatusActionTaken:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	return s.repo.List(ctx, filter)
}

// GetReport returns a single report to a platform moderator.
func (s *Service) GetReport(ctx context.Context, actor access.Identity, id string) (Report, error) {
	if err := access.RequireCapability(actor, access.CapModeratePlatform); err != nil {
		return Report{}, err
	}
	return s.repo.Get(ctx, id)
}

// DismissReport closes a report without touching its target. Handling a
// report twice fails with ErrConflict.
func (s *Service) DismissReport(ctx context.Context, actor access.Identity, reportID string) (Report, error) {
	if err := s.requireModerator(ctx, actor, "report.dismiss", reportID); err != nil {
		return Report{}, err
	}
	var out Report
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rep, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		next, err := rep.Dismiss(actor.ID, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "report.dismiss",
		Target:  "report:" + out.ID,
		Outcome: access.OutcomeExecuted,
	})
	return out, nil
}

// HideContent hides the reported item and closes the report in one
// transaction. The kind and id must match the report target.
func (s *Service) HideContent(ctx context.Context, actor access.Identity, reportID string, in HideInput) (Report, error) {
	if err := s.requireModerator(ctx, actor, "report.hide", reportID); err != nil {
		return Report{}, err
	}
	ref := ContentRef{Kind: access.Kind(strings.ToLower(strings.TrimSpace(in.Kind))), ID: strings.TrimSpace(in.ContentID)}
	if !ref.Kind.Valid() {
		return Report{}, fmt.Errorf("%w: unknown kind %q", shared.ErrValidation, in.Kind)
	}
	var out Report
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rep, err := tx.LockReport(ctx, reportID)
		if err != nil {
			return err
		}
		if rep.Target != ref {
			return fmt.Errorf("%w: report %s targets %s, not %s", shared.ErrValidation, rep.ID, rep.Target, ref)
		}
		at := s.now()
		next, err := rep.TakeAction(actor.ID, at)
		if err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, next); err != nil {
			return err
		}
		if err := tx.HideContent(ctx, ref, actor.ID, at); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  string(ref.Kind) + ".hide",
		Target:  ref.String(),
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"report": out.ID},
	})
	return out, nil
}

func (s *Service) requireModerator(ctx context.Context, actor access.Identity, action, reportID string) error {
	err := access.RequireCapability(actor, access.CapModeratePlatform)
	if err != nil && !actor.Anonymous() {
		s.gate.Audit(ctx, access.AuditEvent{
			ActorID: actor.ID,
			Action:  action,
			Target:  "report:" + reportID,
			Outcome: access.OutcomeDenied,
			Meta:    map[string]any{"reason": string(access.ReasonOf(err))},
		})
	}
	return err
}
