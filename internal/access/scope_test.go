package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchScopeSchoolWide(t *testing.T) {
	item := schoolItem(KindAnnouncement, "author")
	assert.Equal(t, VisibilityVisible, MatchScope(item, newIdentity("s", "")))
	assert.Equal(t, VisibilityVisible, MatchScope(item, newIdentity("rep", "1A", RoleClassRep)))
	assert.Equal(t, VisibilityModerator, MatchScope(item, newIdentity("m", "", RoleModerator)))
	assert.Equal(t, VisibilityHidden, MatchScope(item, Identity{}))
}

func TestMatchScopeClassExclusivity(t *testing.T) {
	classes := []string{"1A", "1B", "2A"}
	plainRoles := [][]Role{nil, {RoleSchoolRep}, {RoleClassRep}, {RoleClassRep, RoleSchoolRep}}
	for _, itemClass := range classes {
		item := classItem(KindPost, "author", itemClass)
		for _, own := range append(classes, "") {
			if own == itemClass {
				continue
			}
			for _, roles := range plainRoles {
				if own == "" && len(roles) > 0 && roles[0] == RoleClassRep {
					continue
				}
				u := newIdentity("u", own, roles...)
				assert.Equalf(t, VisibilityHidden, MatchScope(item, u), "class %s roles %v own %s", itemClass, roles, own)
			}
		}
	}
}

func TestMatchScopeClassMembers(t *testing.T) {
	item := classItem(KindPost, "author", "1A")
	assert.Equal(t, VisibilityVisible, MatchScope(item, newIdentity("s", "1A")))
	assert.Equal(t, VisibilityModerator, MatchScope(item, newIdentity("rep", "1A", RoleClassRep)))
	assert.Equal(t, VisibilityModerator, MatchScope(item, newIdentity("m", "", RoleModerator)))
	assert.Equal(t, VisibilityModerator, MatchScope(item, newIdentity("a", "2B", RoleAdmin)))
}

func TestClassRepModerationIsScopedToOwnClass(t *testing.T) {
	rep := newIdentity("rep", "1A", RoleClassRep)
	assert.True(t, rep.Capabilities().Has(CapModerateClassContent))
	assert.Equal(t, VisibilityHidden, MatchScope(classItem(KindPost, "x", "1B"), rep))

	// Holding the capability without a matching assignment grants nothing.
	stale := rep
	stale.ClassID = "1B"
	assert.Equal(t, VisibilityVisible, MatchScope(classItem(KindPost, "x", "1B"), stale))
}

func TestMatchScopeOverride(t *testing.T) {
	admin := newIdentity("admin", "", RoleAdmin)
	item := classItem(KindPost, "x", "3C")

	ov := Override{actorID: "admin", classID: "3C"}
	assert.Equal(t, VisibilityModerator, MatchScopeOverride(item, admin, ov))

	student := newIdentity("s", "1A")
	forged := Override{actorID: "s", classID: "3C"}
	assert.Equal(t, VisibilityHidden, MatchScopeOverride(item, student, forged))

	assert.Equal(t, VisibilityHidden, MatchScopeOverride(item, student, Override{}))
}
