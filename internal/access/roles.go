package access

import (
	"fmt"
	"strings"
)

// Role names a platform role.
type Role string

const (
	// RoleStudent is the baseline role every identity holds.
	RoleStudent Role = "STUDENT"
	// RoleClassRep represents one class to the school.
	RoleClassRep Role = "CLASS_REP"
	// RoleSchoolRep represents the student body school-wide.
	RoleSchoolRep Role = "SCHOOL_REP"
	// RoleModerator moderates platform content.
	RoleModerator Role = "MODERATOR"
	// RoleAdmin manages users and moderates content.
	RoleAdmin Role = "ADMIN"
)

// AllRoles lists the closed set of roles.
func AllRoles() []Role {
	return []Role{RoleStudent, RoleClassRep, RoleSchoolRep, RoleModerator, RoleAdmin}
}

// ParseRole converts user input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", invalid(ReasonUnknownRole, fmt.Sprintf("unknown role %q", raw))
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleClassRep, RoleSchoolRep, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role may publish school-wide posts.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleModerator || r == RoleSchoolRep
}

// ScopeLevel distinguishes institution-wide from single-class scope.
type ScopeLevel string

const (
	// ScopeNone is carried by the STUDENT baseline assignment.
	ScopeNone ScopeLevel = ""
	// ScopeSchool applies to the entire institution.
	ScopeSchool ScopeLevel = "SCHOOL"
	// ScopeClass applies to a single class.
	ScopeClass ScopeLevel = "CLASS"
)

// Scope describes where a role assignment or a content item applies.
// Content items treat anything other than ScopeClass as school-wide.
type Scope struct {
	Level   ScopeLevel `json:"level,omitempty"`
	ClassID string     `json:"class_id,omitempty"`
}

// SchoolWide returns the institution-wide scope.
func SchoolWide() Scope { return Scope{Level: ScopeSchool} }

// ClassScoped returns a scope bound to classID.
func ClassScoped(classID string) Scope { return Scope{Level: ScopeClass, ClassID: classID} }

// IsClass reports whether the scope is bound to a single class.
func (s Scope) IsClass() bool { return s.Level == ScopeClass }

func (s Scope) String() string {
	switch s.Level {
	case ScopeClass:
		return "class:" + s.ClassID
	case ScopeSchool:
		return "school"
	default:
		return "none"
	}
}

// RoleAssignment grants a role at a scope.
type RoleAssignment struct {
	Role  Role  `json:"role"`
	Scope Scope `json:"scope"`
}

// Identity is the per-request snapshot supplied by the identity provider.
type Identity struct {
	ID          string           `json:"id"`
	DisplayName string           `json:"display_name"`
	ClassID     string           `json:"class_id,omitempty"`
	Roles       []RoleAssignment `json:"roles"`
}

// Anonymous reports whether no identity was presented.
func (i Identity) Anonymous() bool { return strings.TrimSpace(i.ID) == "" }

// HasRole reports whether any assignment carries role.
func (i Identity) HasRole(role Role) bool {
	for _, a := range i.Roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// HasAssignment reports whether the exact (role, scope) pair is held.
func (i Identity) HasAssignment(want RoleAssignment) bool {
	for _, a := range i.Roles {
		if a == want {
			return true
		}
	}
	return false
}

// RoleSet returns the distinct roles held, in assignment order.
func (i Identity) RoleSet() []Role {
	seen := make(map[Role]struct{}, len(i.Roles))
	roles := make([]Role, 0, len(i.Roles))
	for _, a := range i.Roles {
		if _, ok := seen[a.Role]; ok {
			continue
		}
		seen[a.Role] = struct{}{}
		roles = append(roles, a.Role)
	}
	return roles
}

// Capabilities resolves the identity's roles.
func (i Identity) Capabilities() CapabilitySet {
	return Resolve(i.RoleSet())
}

// ClassRepOf reports whether the identity holds CLASS_REP scoped to classID.
func (i Identity) ClassRepOf(classID string) bool {
	if classID == "" {
		return false
	}
	return i.HasAssignment(RoleAssignment{Role: RoleClassRep, Scope: ClassScoped(classID)})
}

// Elevated reports whether any held role is elevated.
func (i Identity) Elevated() bool {
	for _, a := range i.Roles {
		if a.Role.Elevated() {
			return true
		}
	}
	return false
}

// AssignmentFor derives the scope a newly granted role must carry for the identity.
func AssignmentFor(identity Identity, role Role) (RoleAssignment, error) {
	if !role.Valid() {
		return RoleAssignment{}, invalid(ReasonUnknownRole, fmt.Sprintf("unknown role %q", role))
	}
	switch role {
	case RoleStudent:
		return RoleAssignment{Role: role}, nil
	case RoleClassRep:
		if identity.ClassID == "" {
			return RoleAssignment{}, invalid(ReasonNoClass, "no class assigned")
		}
		return RoleAssignment{Role: role, Scope: ClassScoped(identity.ClassID)}, nil
	default:
		return RoleAssignment{Role: role, Scope: SchoolWide()}, nil
	}
}

// ValidateAssignment checks the scope rules for a single assignment held by identity.
func ValidateAssignment(identity Identity, a RoleAssignment) error {
	switch a.Role {
	case RoleStudent:
		if a.Scope != (Scope{}) {
			return invalid(ReasonInvalidScope, "STUDENT carries no scope")
		}
	case RoleAdmin, RoleModerator, RoleSchoolRep:
		if a.Scope != SchoolWide() {
			return invalid(ReasonInvalidScope, fmt.Sprintf("%s must be school-wide", a.Role))
		}
	case RoleClassRep:
		if !a.Scope.IsClass() || a.Scope.ClassID == "" {
			return invalid(ReasonInvalidScope, "CLASS_REP must be class-scoped")
		}
		if identity.ClassID == "" {
			return invalid(ReasonNoClass, "no class assigned")
		}
		if a.Scope.ClassID != identity.ClassID {
			return invalid(ReasonScopeMismatch, "CLASS_REP class must match the identity's class")
		}
	default:
		return invalid(ReasonUnknownRole, fmt.Sprintf("unknown role %q", a.Role))
	}
	return nil
}

// ValidateIdentity checks the baseline, per-assignment and uniqueness invariants.
func ValidateIdentity(identity Identity) error {
	if identity.Anonymous() {
		return invalid(ReasonAnonymous, "identity id required")
	}
	if !identity.HasAssignment(RoleAssignment{Role: RoleStudent}) {
		return invalid(ReasonMissingBaseline, "STUDENT baseline assignment missing")
	}
	seen := make(map[RoleAssignment]struct{}, len(identity.Roles))
	for _, a := range identity.Roles {
		if _, dup := seen[a]; dup {
			return invalid(ReasonDuplicateRole, fmt.Sprintf("duplicate assignment %s@%s", a.Role, a.Scope))
		}
		seen[a] = struct{}{}
		if err := ValidateAssignment(identity, a); err != nil {
			return err
		}
	}
	return nil
}

// ToggleResult tells whether a toggle added or removed an assignment.
type ToggleResult struct {
	Added      bool
	Assignment RoleAssignment
}

// Grant adds role to identity. Granting a held assignment is a validation error.
func Grant(identity Identity, role Role) (Identity, RoleAssignment, error) {
	a, err := AssignmentFor(identity, role)
	if err != nil {
		return identity, RoleAssignment{}, err
	}
	if identity.HasAssignment(a) {
		return identity, a, invalid(ReasonDuplicateRole, fmt.Sprintf("%s already assigned", role))
	}
	if err := ValidateAssignment(identity, a); err != nil {
		return identity, a, err
	}
	next := identity
	next.Roles = append(append([]RoleAssignment(nil), identity.Roles...), a)
	return next, a, nil
}

// Revoke removes role from identity. The STUDENT baseline cannot be revoked.
func Revoke(identity Identity, role Role) (Identity, RoleAssignment, error) {
	if !role.Valid() {
		return identity, RoleAssignment{}, invalid(ReasonUnknownRole, fmt.Sprintf("unknown role %q", role))
	}
	if role == RoleStudent {
		return identity, RoleAssignment{}, invalid(ReasonBaselineRole, "STUDENT baseline cannot be removed")
	}
	next := identity
	next.Roles = make([]RoleAssignment, 0, len(identity.Roles))
	var removed *RoleAssignment
	for _, a := range identity.Roles {
		if a.Role == role && removed == nil {
			a := a
			removed = &a
			continue
		}
		next.Roles = append(next.Roles, a)
	}
	if removed == nil {
		return identity, RoleAssignment{}, notFound(fmt.Sprintf("%s not assigned", role))
	}
	return next, *removed, nil
}

// Toggle flips role on identity: it is granted when absent and revoked when held.
func Toggle(identity Identity, role Role) (Identity, ToggleResult, error) {
	if identity.HasRole(role) {
		next, a, err := Revoke(identity, role)
		return next, ToggleResult{Added: false, Assignment: a}, err
	}
	next, a, err := Grant(identity, role)
	return next, ToggleResult{Added: true, Assignment: a}, err
}
