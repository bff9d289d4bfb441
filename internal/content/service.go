package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/shared"
)

const (
	idempotencyModule = "content.create"
	minPollOptions    = 2
	defaultFeedLimit  = 20
)

// IdempotencyGuard deduplicates create requests carrying the same key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Complete(ctx context.Context, key, module, resourceID string) error
	Lookup(ctx context.Context, key, module string) (string, error)
	Delete(ctx context.Context, key, module string) error
}

// Service handles content business logic. Every operation consults the
// gate before touching storage.
type Service struct {
	repo    Repository
	gate    *access.Gate
	idem    IdempotencyGuard
	classes access.ClassDirectory
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithIdempotency enables Idempotency-Key handling on Create.
func WithIdempotency(guard IdempotencyGuard) Option {
	return func(s *Service) { s.idem = guard }
}

// WithClassDirectory validates class targets on create.
func WithClassDirectory(dir access.ClassDirectory) Option {
	return func(s *Service) { s.classes = dir }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds Service instance.
func NewService(repo Repository, gate *access.Gate, opts ...Option) *Service {
	if gate == nil {
		gate = access.NewGate()
	}
	s := &Service{
		repo:   repo,
		gate:   gate,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create publishes a new item. A non-empty idempotency key makes retries of
// the same request return the item created first.
func (s *Service) Create(ctx context.Context, actor access.Identity, in CreateInput, idemKey string) (Item, error) {
	kind := access.Kind(strings.ToLower(strings.TrimSpace(in.Kind)))
	if !kind.Valid() || kind == access.KindComment {
		return Item{}, fmt.Errorf("%w: unsupported kind %q", shared.ErrValidation, in.Kind)
	}
	scope, err := resolveScope(actor, in)
	if err != nil {
		return Item{}, err
	}
	if err := s.gate.CanCreate(actor, kind, scope).Err(); err != nil {
		return Item{}, err
	}
	if scope.IsClass() && s.classes != nil {
		if _, err := s.classes.LookupClass(ctx, scope.ClassID); err != nil {
			return Item{}, fmt.Errorf("content: class %s: %w", scope.ClassID, err)
		}
	}
	item, err := s.buildItem(actor, kind, scope, in)
	if err != nil {
		return Item{}, err
	}

	if idemKey != "" && s.idem != nil {
		key := actor.ID + ":" + idemKey
		if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if !errors.Is(err, shared.ErrConflict) {
				return Item{}, err
			}
			id, lookupErr := s.idem.Lookup(ctx, key, idempotencyModule)
			if lookupErr != nil {
				return Item{}, lookupErr
			}
			return s.repo.Get(ctx, id)
		}
		if err := s.repo.Create(ctx, item); err != nil {
			if delErr := s.idem.Delete(ctx, key, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
			return Item{}, err
		}
		if err := s.idem.Complete(ctx, key, idempotencyModule, item.ID); err != nil {
			s.logger.Warn("complete idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	} else if err := s.repo.Create(ctx, item); err != nil {
		return Item{}, err
	}

	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  string(kind) + ".create",
		Target:  access.ItemTarget(kind, item.ID),
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"scope": scope.String()},
	})
	return s.repo.Get(ctx, item.ID)
}

func resolveScope(actor access.Identity, in CreateInput) (access.Scope, error) {
	switch in.Scope {
	case ScopeSchool:
		if strings.TrimSpace(in.ClassID) != "" {
			return access.Scope{}, fmt.Errorf("%w: school-wide items carry no class", shared.ErrValidation)
		}
		return access.SchoolWide(), nil
	case ScopeClass:
		classID := strings.TrimSpace(in.ClassID)
		if classID == "" {
			classID = actor.ClassID
		}
		return access.ClassScoped(classID), nil
	default:
		return access.Scope{}, fmt.Errorf("%w: scope must be %q or %q", shared.ErrValidation, ScopeSchool, ScopeClass)
	}
}

func (s *Service) buildItem(actor access.Identity, kind access.Kind, scope access.Scope, in CreateInput) (Item, error) {
	now := s.now()
	item := Item{
		ID:        s.newID(),
		Kind:      kind,
		AuthorID:  actor.ID,
		ClassID:   scope.ClassID,
		Title:     strings.TrimSpace(in.Title),
		Body:      strings.TrimSpace(in.Body),
		Location:  strings.TrimSpace(in.Location),
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch kind {
	case access.KindAnnouncement, access.KindPost:
		if item.Body == "" {
			return Item{}, fmt.Errorf("%w: body required", shared.ErrValidation)
		}
	case access.KindEvent:
		if in.StartsAt == nil {
			return Item{}, fmt.Errorf("%w: event start required", shared.ErrValidation)
		}
		item.StartsAt, item.EndsAt = in.StartsAt, in.EndsAt
	case access.KindPoll:
		if len(in.Options) < minPollOptions {
			return Item{}, fmt.Errorf("%w: poll needs at least %d options", shared.ErrValidation, minPollOptions)
		}
		if item.Title == "" {
			return Item{}, fmt.Errorf("%w: poll question required", shared.ErrValidation)
		}
		item.ClosesAt = in.ClosesAt
		for i, label := range in.Options {
			item.Options = append(item.Options, PollOption{
				ID:       s.newID(),
				PollID:   item.ID,
				Label:    strings.TrimSpace(label),
				Position: i,
			})
		}
	}
	if err := validateSchedule(item); err != nil {
		return Item{}, err
	}
	return item, nil
}

func validateSchedule(item Item) error {
	if item.StartsAt != nil && item.EndsAt != nil && item.EndsAt.Before(*item.StartsAt) {
		return fmt.Errorf("%w: event ends before it starts", shared.ErrValidation)
	}
	return nil
}

// Get returns an item the actor may view.
func (s *Service) Get(ctx context.Context, actor access.Identity, id string) (Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if err := s.gate.CanView(item.Access(), actor).Err(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Feed lists the items visible to the actor: school-wide items plus the
// actor's class. Platform moderators see every class and moderated items.
// A specific class is served under normal scope rules when the actor can
// already see it. Admins asking for a class other than their own, and
// anyone whom scope matching would hide the class from, go through the
// audited override, which only MANAGE_USERS holders obtain.
func (s *Service) Feed(ctx context.Context, actor access.Identity, q FeedQuery) ([]Item, error) {
	if actor.Anonymous() {
		return nil, shared.ErrUnauthenticated
	}
	if q.Kind != "" && !q.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", shared.ErrValidation, q.Kind)
	}
	if q.Limit <= 0 {
		q.Limit = defaultFeedLimit
	}
	caps := actor.Capabilities()
	filter := FeedFilter{
		Kind:          q.Kind,
		IncludeHidden: caps.Has(access.CapModeratePlatform),
		Limit:         q.Limit,
		Offset:        q.Offset,
	}

	var override access.Override
	switch {
	case q.ClassID == "":
		filter.IncludeSchool = true
		filter.AllClasses = caps.Has(access.CapModeratePlatform)
		if actor.ClassID != "" {
			filter.ClassIDs = []string{actor.ClassID}
		}
	case !needsOverride(actor, caps, q.ClassID):
		filter.ClassIDs = []string{q.ClassID}
	default:
		ov, err := s.gate.OverrideClass(ctx, actor, q.ClassID)
		if err != nil {
			return nil, err
		}
		override = ov
		filter.ClassIDs = []string{q.ClassID}
	}

	items, err := s.repo.Feed(ctx, filter)
	if err != nil {
		return nil, err
	}
	visible := make([]Item, 0, len(items))
	for _, it := range items {
		var d access.Decision
		if override.Valid() {
			d = s.gate.CanViewWithOverride(it.Access(), actor, override)
		} else {
			d = s.gate.CanView(it.Access(), actor)
		}
		if d.Allowed {
			visible = append(visible, it)
		}
	}
	return visible, nil
}

func needsOverride(actor access.Identity, caps access.CapabilitySet, classID string) bool {
	if classID == actor.ClassID {
		return false
	}
	if caps.Has(access.CapManageUsers) {
		return true
	}
	return access.MatchScope(access.Item{Scope: access.ClassScoped(classID)}, actor) == access.VisibilityHidden
}

// Update edits an item. Only the author may edit.
func (s *Service) Update(ctx context.Context, actor access.Identity, id string, in UpdateInput) (Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return Item{}, err
	}
	d := s.gate.CanMutate(item.Access(), actor, access.ActionEdit)
	if err := d.Err(); err != nil {
		return Item{}, err
	}
	if err := checkUpdateFields(item.Kind, in); err != nil {
		return Item{}, err
	}
	if in.Title != nil {
		item.Title = strings.TrimSpace(*in.Title)
		if item.Title == "" && item.Kind == access.KindPoll {
			return Item{}, fmt.Errorf("%w: poll question required", shared.ErrValidation)
		}
	}
	if in.Body != nil {
		item.Body = strings.TrimSpace(*in.Body)
		if item.Body == "" && item.Kind != access.KindEvent && item.Kind != access.KindPoll {
			return Item{}, fmt.Errorf("%w: body required", shared.ErrValidation)
		}
	}
	if in.Location != nil {
		item.Location = strings.TrimSpace(*in.Location)
	}
	if in.StartsAt != nil {
		item.StartsAt = in.StartsAt
	}
	if in.EndsAt != nil {
		item.EndsAt = in.EndsAt
	}
	if in.ClosesAt != nil {
		item.ClosesAt = in.ClosesAt
	}
	if err := validateSchedule(item); err != nil {
		return Item{}, err
	}
	item.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, item); err != nil {
		return Item{}, err
	}
	s.gate.RecordMutation(ctx, actor, item.Access(), access.ActionEdit, d)
	return s.repo.Get(ctx, id)
}

// checkUpdateFields rejects schedule fields on kinds that have no schedule.
func checkUpdateFields(kind access.Kind, in UpdateInput) error {
	if kind != access.KindEvent && (in.StartsAt != nil || in.EndsAt != nil) {
		return fmt.Errorf("%w: only events have start and end times", shared.ErrValidation)
	}
	if kind != access.KindPoll && in.ClosesAt != nil {
		return fmt.Errorf("%w: only polls have a closing time", shared.ErrValidation)
	}
	return nil
}

// Delete removes an item when the author or a scoped moderator asks.
func (s *Service) Delete(ctx context.Context, actor access.Identity, id string) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	d := s.gate.CanMutate(item.Access(), actor, access.ActionDelete)
	if err := d.Err(); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.gate.RecordMutation(ctx, actor, item.Access(), access.ActionDelete, d)
	return nil
}

// Comment adds a comment under parentID. The comment inherits the parent's
// scope.
func (s *Service) Comment(ctx context.Context, actor access.Identity, parentID string, in CommentInput) (Item, error) {
	parent, err := s.repo.Get(ctx, parentID)
	if err != nil {
		return Item{}, err
	}
	if err := s.gate.CanComment(parent.Access(), actor).Err(); err != nil {
		return Item{}, err
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return Item{}, fmt.Errorf("%w: body required", shared.ErrValidation)
	}
	now := s.now()
	comment := Item{
		ID:        s.newID(),
		Kind:      access.KindComment,
		AuthorID:  actor.ID,
		ClassID:   parent.ClassID,
		ParentID:  parent.ID,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, comment); err != nil {
		return Item{}, err
	}
	s.gate.Audit(ctx, access.AuditEvent{
		ActorID: actor.ID,
		Action:  "comment.create",
		Target:  access.ItemTarget(access.KindComment, comment.ID),
		Outcome: access.OutcomeExecuted,
		Meta:    map[string]any{"parent": access.ItemTarget(parent.Kind, parent.ID)},
	})
	return s.repo.Get(ctx, comment.ID)
}

// Comments lists the comments the actor may see under parentID.
func (s *Service) Comments(ctx context.Context, actor access.Identity, parentID string) ([]Item, error) {
	if _, err := s.Get(ctx, actor, parentID); err != nil {
		return nil, err
	}
	items, err := s.repo.Comments(ctx, parentID)
	if err != nil {
		return nil, err
	}
	visible := make([]Item, 0, len(items))
	for _, it := range items {
		if s.gate.CanView(it.Access(), actor).Allowed {
			visible = append(visible, it)
		}
	}
	return visible, nil
}

// VotePoll records the actor's vote. Voting again replaces the earlier
// choice.
func (s *Service) VotePoll(ctx context.Context, actor access.Identity, pollID string, in VoteInput) (Item, error) {
	poll, err := s.engageable(ctx, actor, pollID, access.KindPoll)
	if err != nil {
		return Item{}, err
	}
	if err := access.RequireCapability(actor, access.CapVotePolls); err != nil {
		return Item{}, err
	}
	if poll.Closed(s.now()) {
		return Item{}, fmt.Errorf("%w: poll closed", shared.ErrConflict)
	}
	found := false
	for _, opt := range poll.Options {
		if opt.ID == in.OptionID {
			found = true
			break
		}
	}
	if !found {
		return Item{}, fmt.Errorf("%w: option does not belong to poll", shared.ErrValidation)
	}
	if err := s.repo.UpsertVote(ctx, poll.ID, actor.ID, in.OptionID); err != nil {
		return Item{}, err
	}
	return s.repo.Get(ctx, poll.ID)
}

// ToggleLike likes a post, or removes the like when already present.
func (s *Service) ToggleLike(ctx context.Context, actor access.Identity, postID string) (Toggle, error) {
	if _, err := s.engageable(ctx, actor, postID, access.KindPost); err != nil {
		return Toggle{}, err
	}
	return s.repo.ToggleLike(ctx, postID, actor.ID)
}

// ToggleParticipation joins an event, or leaves it when already joined.
func (s *Service) ToggleParticipation(ctx context.Context, actor access.Identity, eventID string) (Toggle, error) {
	if _, err := s.engageable(ctx, actor, eventID, access.KindEvent); err != nil {
		return Toggle{}, err
	}
	return s.repo.ToggleParticipation(ctx, eventID, actor.ID)
}

func (s *Service) engageable(ctx context.Context, actor access.Identity, id string, kind access.Kind) (Item, error) {
	item, err := s.Get(ctx, actor, id)
	if err != nil {
		return Item{}, err
	}
	if item.Kind != kind {
		return Item{}, fmt.Errorf("%w: %s is not a %s", shared.ErrValidation, id, kind)
	}
	return item, nil
}
