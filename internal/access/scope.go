package access

import "time"

// Visibility is the outcome of scope matching.
type Visibility int

const (
	// VisibilityHidden means the identity may not see the item.
	VisibilityHidden Visibility = iota
	// VisibilityVisible means ordinary read access.
	VisibilityVisible
	// VisibilityModerator means read access with moderation authority.
	VisibilityModerator
)

func (v Visibility) String() string {
	switch v {
	case VisibilityVisible:
		return "visible"
	case VisibilityModerator:
		return "visible_as_moderator"
	default:
		return "hidden"
	}
}

// Kind enumerates content kinds.
type Kind string

const (
	KindAnnouncement Kind = "announcement"
	KindPost         Kind = "post"
	KindEvent        Kind = "event"
	KindPoll         Kind = "poll"
	KindComment      Kind = "comment"
)

// AllKinds lists the content kinds.
func AllKinds() []Kind {
	return []Kind{KindAnnouncement, KindPost, KindEvent, KindPoll, KindComment}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAnnouncement, KindPost, KindEvent, KindPoll, KindComment:
		return true
	}
	return false
}

// Item is the engine's view of a content item.
type Item struct {
	ID       string
	Kind     Kind
	AuthorID string
	Scope    Scope
	Hidden   bool
	HiddenBy string
}

// MatchScope decides whether identity may see item based on scope alone.
// Moderation state is handled by the gate.
func MatchScope(item Item, identity Identity) Visibility {
	return matchScope(item, identity, identity.Capabilities())
}

func matchScope(item Item, identity Identity, caps CapabilitySet) Visibility {
	if identity.Anonymous() {
		return VisibilityHidden
	}
	if !item.Scope.IsClass() {
		if caps.HasAny(CapModeratePlatform, CapModeratePublicBoard) {
			return VisibilityModerator
		}
		return VisibilityVisible
	}
	classID := item.Scope.ClassID
	if caps.Has(CapModeratePlatform) {
		return VisibilityModerator
	}
	// A class rep moderates its own class only, never MODERATE_CLASS_CONTENT in the abstract.
	if caps.Has(CapModerateClassContent) && identity.ClassRepOf(classID) {
		return VisibilityModerator
	}
	if identity.ClassID != "" && identity.ClassID == classID {
		return VisibilityVisible
	}
	return VisibilityHidden
}

// Override is an admin grant to view one class regardless of membership.
// It can only be obtained from Gate.OverrideClass, which audits the grant.
type Override struct {
	actorID   string
	classID   string
	grantedAt time.Time
}

// ActorID returns the admin the override was granted to.
func (o Override) ActorID() string { return o.actorID }

// ClassID returns the target class.
func (o Override) ClassID() string { return o.classID }

// GrantedAt returns when the override was granted.
func (o Override) GrantedAt() time.Time { return o.grantedAt }

// Valid reports whether the override was minted by the gate.
func (o Override) Valid() bool { return o.actorID != "" && o.classID != "" }

// MatchScopeOverride applies an admin override on top of MatchScope.
func MatchScopeOverride(item Item, identity Identity, override Override) Visibility {
	caps := identity.Capabilities()
	v := matchScope(item, identity, caps)
	if v == VisibilityModerator {
		return v
	}
	if !override.Valid() || override.actorID != identity.ID || !caps.Has(CapManageUsers) {
		return v
	}
	if item.Scope.IsClass() && item.Scope.ClassID == override.classID {
		return VisibilityModerator
	}
	return v
}
