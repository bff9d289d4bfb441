package access

import "sort"

// Capability is a named permission.
type Capability string

const (
	CapCreateSchoolAnnouncement Capability = "CREATE_SCHOOL_ANNOUNCEMENT"
	CapCreateClassAnnouncement  Capability = "CREATE_CLASS_ANNOUNCEMENT"
	CapCreateStudentPost        Capability = "CREATE_STUDENT_POST"
	CapCreateSchoolEvent        Capability = "CREATE_SCHOOL_EVENT"
	CapCreateGlobalPoll         Capability = "CREATE_GLOBAL_POLL"
	CapCreateClassPoll          Capability = "CREATE_CLASS_POLL"
	CapVotePolls                Capability = "VOTE_POLLS"
	CapComment                  Capability = "COMMENT"
	CapModeratePublicBoard      Capability = "MODERATE_PUBLIC_BOARD"
	CapModerateClassContent     Capability = "MODERATE_CLASS_CONTENT"
	CapModeratePlatform         Capability = "MODERATE_PLATFORM"
	CapManageUsers              Capability = "MANAGE_USERS"
)

// AllCapabilities lists the closed set of capabilities.
func AllCapabilities() []Capability {
	return []Capability{
		CapCreateSchoolAnnouncement,
		CapCreateClassAnnouncement,
		CapCreateStudentPost,
		CapCreateSchoolEvent,
		CapCreateGlobalPoll,
		CapCreateClassPoll,
		CapVotePolls,
		CapComment,
		CapModeratePublicBoard,
		CapModerateClassContent,
		CapModeratePlatform,
		CapManageUsers,
	}
}

// MODERATE_PLATFORM is listed together with the two capabilities it supersedes
// so that callers checking the narrower ones see moderators as well.
var roleCapabilities = map[Role][]Capability{
	RoleStudent: {
		CapCreateStudentPost,
		CapVotePolls,
		CapComment,
	},
	RoleClassRep: {
		CapCreateClassAnnouncement,
		CapCreateClassPoll,
		CapModerateClassContent,
	},
	RoleSchoolRep: {
		CapCreateSchoolAnnouncement,
		CapCreateGlobalPoll,
		CapCreateSchoolEvent,
	},
	RoleModerator: {
		CapModeratePlatform,
		CapModeratePublicBoard,
		CapModerateClassContent,
	},
	RoleAdmin: {
		CapModeratePlatform,
		CapModeratePublicBoard,
		CapModerateClassContent,
		CapManageUsers,
	},
}

// CapabilitySet is an unordered set of capabilities.
type CapabilitySet map[Capability]struct{}

// Resolve unions the capabilities of every role. Unknown roles contribute nothing.
func Resolve(roles []Role) CapabilitySet {
	set := make(CapabilitySet)
	for _, role := range roles {
		for _, c := range roleCapabilities[role] {
			set[c] = struct{}{}
		}
	}
	return set
}

// Has reports membership.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// HasAny reports whether at least one capability is present.
func (s CapabilitySet) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// HasAll reports whether every capability is present.
func (s CapabilitySet) HasAll(caps ...Capability) bool {
	for _, c := range caps {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every member of s is in other.
func (s CapabilitySet) SubsetOf(other CapabilitySet) bool {
	for c := range s {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

// Slice returns the capabilities sorted by name.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
