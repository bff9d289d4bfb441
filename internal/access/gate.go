// Package access is the access control and content-scoping engine: capability
// resolution, scope matching and the authorization gate.
package access

import (
	"context"
	"time"

	"github.com/classboard/classboard/internal/shared"
)

// Action is a mutation performed on an existing item.
type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Class is the directory's view of a class.
type Class struct {
	ID      string
	Year    int
	Section string
}

// ClassDirectory resolves class ids. Missing classes are reported with an
// error wrapping shared.ErrNotFound.
type ClassDirectory interface {
	LookupClass(ctx context.Context, classID string) (Class, error)
}

// DecisionObserver is notified of every decision, e.g. for metrics.
type DecisionObserver interface {
	ObserveDecision(op string, kind Kind, d Decision)
}

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed    bool
	Reason     Reason
	Visibility Visibility
}

// Err converts a denial into a typed error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonNoClass:
		return &Error{Kind: shared.ErrValidation, Reason: d.Reason, Message: "no class assigned"}
	case ReasonAnonymous:
		return &Error{Kind: shared.ErrUnauthenticated, Reason: d.Reason}
	default:
		return &Error{Kind: shared.ErrForbidden, Reason: d.Reason}
	}
}

func allow(reason Reason) Decision { return Decision{Allowed: true, Reason: reason} }

func deny(reason Reason) Decision { return Decision{Reason: reason} }

// Gate composes capability resolution, scope matching and ownership into the
// checks every content action needs. Decision methods are pure and safe for
// concurrent use.
type Gate struct {
	policies PolicyTable
	classes  ClassDirectory
	audit    AuditSink
	observer DecisionObserver
	now      func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithPolicies replaces the per-kind delete policies.
func WithPolicies(table PolicyTable) GateOption {
	return func(g *Gate) {
		if table != nil {
			g.policies = table
		}
	}
}

// WithClassDirectory sets the directory used to validate override targets.
func WithClassDirectory(dir ClassDirectory) GateOption {
	return func(g *Gate) { g.classes = dir }
}

// WithAuditSink sets the sink receiving audit events.
func WithAuditSink(sink AuditSink) GateOption {
	return func(g *Gate) {
		if sink != nil {
			g.audit = sink
		}
	}
}

// WithObserver sets the decision observer.
func WithObserver(o DecisionObserver) GateOption {
	return func(g *Gate) { g.observer = o }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate builds a Gate with default policies and a no-op audit sink.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		policies: DefaultPolicies(),
		audit:    nopSink{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policies returns the active policy table.
func (g *Gate) Policies() PolicyTable { return g.policies }

var createCapabilities = map[Kind]map[ScopeLevel]Capability{
	KindAnnouncement: {
		ScopeSchool: CapCreateSchoolAnnouncement,
		ScopeClass:  CapCreateClassAnnouncement,
	},
	KindPost: {
		ScopeSchool: CapCreateStudentPost,
		ScopeClass:  CapCreateStudentPost,
	},
	KindEvent: {
		ScopeSchool: CapCreateSchoolEvent,
	},
	KindPoll: {
		ScopeSchool: CapCreateGlobalPoll,
		ScopeClass:  CapCreateClassPoll,
	},
}

// RequiredCapability returns the capability needed to create kind at scope.
func RequiredCapability(kind Kind, scope Scope) (Capability, bool) {
	level := ScopeSchool
	if scope.IsClass() {
		level = ScopeClass
	}
	c, ok := createCapabilities[kind][level]
	return c, ok
}

// CanCreate decides whether identity may create an item of kind at scope.
// Comments are created through CanComment.
func (g *Gate) CanCreate(identity Identity, kind Kind, scope Scope) Decision {
	d := g.canCreate(identity, kind, scope)
	g.observe("create", kind, d)
	return d
}

func (g *Gate) canCreate(identity Identity, kind Kind, scope Scope) Decision {
	if identity.Anonymous() {
		return deny(ReasonAnonymous)
	}
	required, ok := RequiredCapability(kind, scope)
	if !ok {
		return deny(ReasonUnsupported)
	}
	caps := identity.Capabilities()
	if !scope.IsClass() {
		if !caps.Has(required) {
			return deny(ReasonMissingCapability)
		}
		// Posts are class-only for plain students.
		if kind == KindPost && !identity.Elevated() {
			return deny(ReasonElevatedRoleRequired)
		}
		return allow(ReasonAllowed)
	}
	if caps.Has(CapManageUsers) {
		if scope.ClassID == "" {
			return deny(ReasonNoClass)
		}
		return allow(ReasonOverride)
	}
	if !caps.Has(required) {
		return deny(ReasonMissingCapability)
	}
	if identity.ClassID == "" {
		return deny(ReasonNoClass)
	}
	if scope.ClassID != "" && scope.ClassID != identity.ClassID {
		return deny(ReasonScopeMismatch)
	}
	return allow(ReasonAllowed)
}

// CanComment decides whether identity may comment on parent.
func (g *Gate) CanComment(parent Item, identity Identity) Decision {
	d := g.canComment(parent, identity)
	g.observe("comment", parent.Kind, d)
	return d
}

func (g *Gate) canComment(parent Item, identity Identity) Decision {
	if identity.Anonymous() {
		return deny(ReasonAnonymous)
	}
	if parent.Kind == KindComment {
		return deny(ReasonUnsupported)
	}
	if !identity.Capabilities().Has(CapComment) {
		return deny(ReasonMissingCapability)
	}
	return g.canView(parent, identity, Override{})
}

// CanView decides whether identity may see item.
func (g *Gate) CanView(item Item, identity Identity) Decision {
	d := g.canView(item, identity, Override{})
	g.observe("view", item.Kind, d)
	return d
}

// CanViewWithOverride is CanView with an admin class override applied.
func (g *Gate) CanViewWithOverride(item Item, identity Identity, override Override) Decision {
	d := g.canView(item, identity, override)
	g.observe("view_override", item.Kind, d)
	return d
}

func (g *Gate) canView(item Item, identity Identity, override Override) Decision {
	if identity.Anonymous() {
		return deny(ReasonAnonymous)
	}
	caps := identity.Capabilities()
	if item.Hidden {
		// Moderated items stay readable to platform moderators for audit.
		if caps.Has(CapModeratePlatform) {
			return Decision{Allowed: true, Reason: ReasonModerator, Visibility: VisibilityModerator}
		}
		return deny(ReasonContentHidden)
	}
	var v Visibility
	if override.Valid() {
		v = MatchScopeOverride(item, identity, override)
	} else {
		v = matchScope(item, identity, caps)
	}
	switch v {
	case VisibilityModerator:
		reason := ReasonModerator
		if override.Valid() && matchScope(item, identity, caps) != VisibilityModerator {
			reason = ReasonOverride
		}
		return Decision{Allowed: true, Reason: reason, Visibility: v}
	case VisibilityVisible:
		return Decision{Allowed: true, Reason: ReasonAllowed, Visibility: v}
	default:
		return deny(ReasonScopeMismatch)
	}
}

// CanMutate decides whether identity may perform action on item. The author
// always may; for deletes, a moderator whose scope matches may too when the
// kind's policy allows it.
func (g *Gate) CanMutate(item Item, identity Identity, action Action) Decision {
	d := g.canMutate(item, identity, action)
	g.observe("mutate_"+string(action), item.Kind, d)
	return d
}

func (g *Gate) canMutate(item Item, identity Identity, action Action) Decision {
	if identity.Anonymous() {
		return deny(ReasonAnonymous)
	}
	if action != ActionEdit && action != ActionDelete {
		return deny(ReasonUnsupported)
	}
	if item.AuthorID != "" && item.AuthorID == identity.ID {
		return Decision{Allowed: true, Reason: ReasonAuthor, Visibility: VisibilityVisible}
	}
	if action != ActionDelete {
		return deny(ReasonNotAuthor)
	}
	if g.policies.For(item.Kind) != PolicyAuthorOrModerator {
		return deny(ReasonAuthorOnlyPolicy)
	}
	if matchScope(item, identity, identity.Capabilities()) != VisibilityModerator {
		return deny(ReasonScopeMismatch)
	}
	return Decision{Allowed: true, Reason: ReasonModerator, Visibility: VisibilityModerator}
}

// OverrideClass grants identity an audited view of classID regardless of
// membership. It requires MANAGE_USERS and a class known to the directory.
func (g *Gate) OverrideClass(ctx context.Context, identity Identity, classID string) (Override, error) {
	event := AuditEvent{
		ActorID: identity.ID,
		Action:  "class.override_view",
		Target:  "class:" + classID,
		At:      g.now(),
	}
	if err := RequireCapability(identity, CapManageUsers); err != nil {
		event.Outcome = OutcomeDenied
		g.Audit(ctx, event)
		return Override{}, err
	}
	if classID == "" {
		return Override{}, invalid(ReasonNoClass, "target class required")
	}
	if g.classes != nil {
		if _, err := g.classes.LookupClass(ctx, classID); err != nil {
			return Override{}, err
		}
	}
	event.Outcome = OutcomeGranted
	g.Audit(ctx, event)
	return Override{actorID: identity.ID, classID: classID, grantedAt: event.At}, nil
}

// Audit forwards event to the configured sink.
func (g *Gate) Audit(ctx context.Context, event AuditEvent) {
	if event.At.IsZero() {
		event.At = g.now()
	}
	g.audit.Emit(ctx, event)
}

// RecordMutation audits a mutation that was authorised by d and executed.
func (g *Gate) RecordMutation(ctx context.Context, identity Identity, item Item, action Action, d Decision) {
	g.Audit(ctx, AuditEvent{
		ActorID: identity.ID,
		Action:  string(item.Kind) + "." + string(action),
		Target:  ItemTarget(item.Kind, item.ID),
		Outcome: OutcomeExecuted,
		Meta: map[string]any{
			"reason":    string(d.Reason),
			"author_id": item.AuthorID,
		},
	})
}

func (g *Gate) observe(op string, kind Kind, d Decision) {
	if g.observer != nil {
		g.observer.ObserveDecision(op, kind, d)
	}
}
