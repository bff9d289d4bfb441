// Package roles is the role registry: the only path through which role
// assignments are granted or revoked.
package roles

import "github.com/classboard/classboard/internal/access"

// Change describes the effect of a registry operation.
type Change struct {
	IdentityID string                  `json:"identity_id"`
	Role       access.Role             `json:"role"`
	Scope      access.Scope            `json:"scope"`
	Added      bool                    `json:"added"`
	Roles      []access.RoleAssignment `json:"roles"`
}

func (c Change) action() string {
	if c.Added {
		return "role.grant"
	}
	return "role.revoke"
}
