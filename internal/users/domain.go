// Package users provisions identities and loads the snapshot the access
// engine evaluates.
package users

import (
	"time"

	"github.com/classboard/classboard/internal/access"
)

// Identity is a stored identity together with its role assignments.
type Identity struct {
	ID          string                  `json:"id"`
	DisplayName string                  `json:"display_name"`
	Email       string                  `json:"email,omitempty"`
	ClassID     string                  `json:"class_id,omitempty"`
	Roles       []access.RoleAssignment `json:"roles"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Access returns the snapshot consumed by the access engine.
func (i Identity) Access() access.Identity {
	return access.Identity{
		ID:          i.ID,
		DisplayName: i.DisplayName,
		ClassID:     i.ClassID,
		Roles:       append([]access.RoleAssignment(nil), i.Roles...),
	}
}

// Profile is an identity as presented to clients, with resolved capabilities.
type Profile struct {
	Identity
	Capabilities []access.Capability `json:"capabilities"`
}

// NewProfile resolves capabilities for ident.
func NewProfile(ident Identity) Profile {
	return Profile{Identity: ident, Capabilities: ident.Access().Capabilities().Slice()}
}

// CreateInput provisions a new identity.
type CreateInput struct {
	DisplayName string `json:"display_name" validate:"required,max=120"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	ClassID     string `json:"class_id" validate:"omitempty,max=64"`
}

// AssignClassInput moves an identity to another class. An empty class id
// removes the class.
type AssignClassInput struct {
	ClassID string `json:"class_id" validate:"omitempty,max=64"`
}

// ListResult is a page of identities.
type ListResult struct {
	Items []Identity `json:"items"`
	Total int        `json:"total"`
}
