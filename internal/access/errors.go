package access

import (
	"errors"

	"github.com/classboard/classboard/internal/shared"
)

// Reason is the machine-readable code attached to every decision.
type Reason string

const (
	ReasonAllowed              Reason = "allowed"
	ReasonAuthor               Reason = "author"
	ReasonModerator            Reason = "moderator"
	ReasonOverride             Reason = "admin_override"
	ReasonAnonymous            Reason = "unauthenticated"
	ReasonMissingCapability    Reason = "missing_capability"
	ReasonElevatedRoleRequired Reason = "elevated_role_required"
	ReasonNoClass              Reason = "no_class_assigned"
	ReasonScopeMismatch        Reason = "scope_mismatch"
	ReasonContentHidden        Reason = "content_hidden"
	ReasonNotAuthor            Reason = "not_author"
	ReasonAuthorOnlyPolicy     Reason = "author_only_policy"
	ReasonUnsupported          Reason = "unsupported"
	ReasonUnknownRole          Reason = "unknown_role"
	ReasonInvalidScope         Reason = "invalid_scope"
	ReasonDuplicateRole        Reason = "duplicate_role"
	ReasonBaselineRole         Reason = "baseline_role"
	ReasonMissingBaseline      Reason = "missing_baseline"
	ReasonNotFound             Reason = "not_found"
)

// Error is a typed engine error. Kind is one of the shared sentinels so
// callers can branch with errors.Is.
type Error struct {
	Kind    error
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error() + ": " + string(e.Reason)
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// ReasonOf extracts the reason code from err, if any.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

func invalid(reason Reason, msg string) error {
	return &Error{Kind: shared.ErrValidation, Reason: reason, Message: msg}
}

func forbidden(reason Reason, msg string) error {
	return &Error{Kind: shared.ErrForbidden, Reason: reason, Message: msg}
}

func notFound(msg string) error {
	return &Error{Kind: shared.ErrNotFound, Reason: ReasonNotFound, Message: msg}
}

// Forbidden builds a Forbidden error for callers outside the gate.
func Forbidden(reason Reason, msg string) error { return forbidden(reason, msg) }

// Invalid builds a ValidationError for callers outside the gate.
func Invalid(reason Reason, msg string) error { return invalid(reason, msg) }

// RequireCapability returns nil when identity holds every capability.
func RequireCapability(identity Identity, caps ...Capability) error {
	if identity.Anonymous() {
		return &Error{Kind: shared.ErrUnauthenticated, Reason: ReasonAnonymous}
	}
	set := identity.Capabilities()
	for _, c := range caps {
		if !set.Has(c) {
			return forbidden(ReasonMissingCapability, "missing capability "+string(c))
		}
	}
	return nil
}
