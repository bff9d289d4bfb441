package access

import (
	"fmt"
	"strings"
)

// Policy decides who besides the author may delete an item of a kind.
type Policy string

const (
	// PolicyAuthorOnly allows only the author to delete.
	PolicyAuthorOnly Policy = "author_only"
	// PolicyAuthorOrModerator also allows moderators with matching scope to delete.
	PolicyAuthorOrModerator Policy = "author_or_moderator"
)

// PolicyTable maps kinds to their delete policy.
type PolicyTable map[Kind]Policy

// DefaultPolicies keeps board posts and comments strictly author-deletable;
// moderators act on them through reports and soft-hiding instead.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		KindAnnouncement: PolicyAuthorOrModerator,
		KindPost:         PolicyAuthorOnly,
		KindEvent:        PolicyAuthorOrModerator,
		KindPoll:         PolicyAuthorOrModerator,
		KindComment:      PolicyAuthorOnly,
	}
}

// For returns the policy of kind, falling back to PolicyAuthorOnly.
func (t PolicyTable) For(kind Kind) Policy {
	if p, ok := t[kind]; ok {
		return p
	}
	return PolicyAuthorOnly
}

// ParsePolicies overlays raw kind=policy pairs on top of the defaults.
func ParsePolicies(raw map[string]string) (PolicyTable, error) {
	table := DefaultPolicies()
	for k, v := range raw {
		kind := Kind(strings.ToLower(strings.TrimSpace(k)))
		if !kind.Valid() {
			return nil, fmt.Errorf("access: unknown content kind %q", k)
		}
		policy := Policy(strings.ToLower(strings.TrimSpace(v)))
		switch policy {
		case PolicyAuthorOnly, PolicyAuthorOrModerator:
			table[kind] = policy
		default:
			return nil, fmt.Errorf("access: unknown policy %q for %s", v, kind)
		}
	}
	return table, nil
}
