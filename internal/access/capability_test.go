package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleSubsets() [][]Role {
	all := AllRoles()
	subsets := make([][]Role, 0, 1<<len(all))
	for mask := 0; mask < 1<<len(all); mask++ {
		var set []Role
		for i, r := range all {
			if mask&(1<<i) != 0 {
				set = append(set, r)
			}
		}
		subsets = append(subsets, set)
	}
	return subsets
}

func isSubset(a, b []Role) bool {
	in := make(map[Role]bool, len(b))
	for _, r := range b {
		in[r] = true
	}
	for _, r := range a {
		if !in[r] {
			return false
		}
	}
	return true
}

func TestResolveIsMonotonic(t *testing.T) {
	subsets := roleSubsets()
	for _, r1 := range subsets {
		for _, r2 := range subsets {
			if !isSubset(r1, r2) {
				continue
			}
			require.Truef(t, Resolve(r1).SubsetOf(Resolve(r2)), "resolve(%v) not within resolve(%v)", r1, r2)
		}
	}
}

func TestResolveEmptyRoleSet(t *testing.T) {
	assert.Empty(t, Resolve(nil))
}

func TestResolveRoleTable(t *testing.T) {
	cases := []struct {
		role Role
		has  []Capability
		not  []Capability
	}{
		{RoleStudent, []Capability{CapCreateStudentPost, CapVotePolls, CapComment}, []Capability{CapCreateClassPoll, CapModeratePlatform}},
		{RoleClassRep, []Capability{CapCreateClassAnnouncement, CapCreateClassPoll, CapModerateClassContent}, []Capability{CapModeratePlatform, CapCreateSchoolEvent}},
		{RoleSchoolRep, []Capability{CapCreateSchoolAnnouncement, CapCreateGlobalPoll, CapCreateSchoolEvent}, []Capability{CapModerateClassContent}},
		{RoleModerator, []Capability{CapModeratePlatform, CapModeratePublicBoard, CapModerateClassContent}, []Capability{CapManageUsers}},
		{RoleAdmin, []Capability{CapModeratePlatform, CapManageUsers}, []Capability{CapCreateSchoolAnnouncement}},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			caps := Resolve([]Role{tc.role})
			assert.True(t, caps.HasAll(tc.has...))
			for _, c := range tc.not {
				assert.Falsef(t, caps.Has(c), "%s should not grant %s", tc.role, c)
			}
		})
	}
}

func TestCapabilitySetSliceSorted(t *testing.T) {
	caps := Resolve([]Role{RoleStudent}).Slice()
	assert.Equal(t, []Capability{CapComment, CapCreateStudentPost, CapVotePolls}, caps)
}
