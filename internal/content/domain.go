// Package content stores announcements, posts, events, polls and comments
// and routes every read and write through the access gate.
package content

import (
	"time"

	"github.com/classboard/classboard/internal/access"
)

// Scope names accepted on create requests.
const (
	ScopeSchool = "school"
	ScopeClass  = "class"
)

// Item is a stored content item. ClassID is empty for school-wide items.
type Item struct {
	ID           string       `json:"id"`
	Kind         access.Kind  `json:"kind"`
	AuthorID     string       `json:"author_id"`
	ClassID      string       `json:"class_id,omitempty"`
	ParentID     string       `json:"parent_id,omitempty"`
	Title        string       `json:"title,omitempty"`
	Body         string       `json:"body,omitempty"`
	StartsAt     *time.Time   `json:"starts_at,omitempty"`
	EndsAt       *time.Time   `json:"ends_at,omitempty"`
	Location     string       `json:"location,omitempty"`
	ClosesAt     *time.Time   `json:"closes_at,omitempty"`
	Hidden       bool         `json:"hidden,omitempty"`
	HiddenBy     string       `json:"hidden_by,omitempty"`
	Options      []PollOption `json:"options,omitempty"`
	Likes        int          `json:"likes"`
	Participants int          `json:"participants"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Scope returns the visibility scope of the item.
func (i Item) Scope() access.Scope {
	if i.ClassID == "" {
		return access.SchoolWide()
	}
	return access.ClassScoped(i.ClassID)
}

// Access returns the view the gate evaluates.
func (i Item) Access() access.Item {
	return access.Item{
		ID:       i.ID,
		Kind:     i.Kind,
		AuthorID: i.AuthorID,
		Scope:    i.Scope(),
		Hidden:   i.Hidden,
		HiddenBy: i.HiddenBy,
	}
}

// Closed reports whether a poll stopped accepting votes at now.
func (i Item) Closed(now time.Time) bool {
	return i.ClosesAt != nil && !now.Before(*i.ClosesAt)
}

// PollOption is one answer of a poll with its current vote count.
type PollOption struct {
	ID       string `json:"id"`
	PollID   string `json:"-"`
	Label    string `json:"label"`
	Position int    `json:"position"`
	Votes    int    `json:"votes"`
}

// CreateInput creates an announcement, post, event or poll.
type CreateInput struct {
	Kind     string     `json:"kind" validate:"required,oneof=announcement post event poll"`
	Scope    string     `json:"scope" validate:"required,oneof=school class"`
	ClassID  string     `json:"class_id" validate:"omitempty,max=64"`
	Title    string     `json:"title" validate:"max=200"`
	Body     string     `json:"body" validate:"max=10000"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Location string     `json:"location" validate:"max=200"`
	ClosesAt *time.Time `json:"closes_at"`
	Options  []string   `json:"options" validate:"omitempty,max=10,dive,required,max=120"`
}

// UpdateInput edits an item. Nil fields are left unchanged.
type UpdateInput struct {
	Title    *string    `json:"title" validate:"omitempty,max=200"`
	Body     *string    `json:"body" validate:"omitempty,max=10000"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Location *string    `json:"location" validate:"omitempty,max=200"`
	ClosesAt *time.Time `json:"closes_at"`
}

// CommentInput adds a comment to an item.
type CommentInput struct {
	Body string `json:"body" validate:"required,max=2000"`
}

// VoteInput casts or changes a poll vote.
type VoteInput struct {
	OptionID string `json:"option_id" validate:"required"`
}

// FeedQuery filters the feed. ClassID requests a class other than the
// caller's own, which needs an audited admin override.
type FeedQuery struct {
	Kind    access.Kind
	ClassID string
	Limit   int
	Offset  int
}

// FeedFilter is the storage-level feed selection.
type FeedFilter struct {
	Kind          access.Kind
	IncludeSchool bool
	ClassIDs      []string
	AllClasses    bool
	IncludeHidden bool
	Limit         int
	Offset        int
}

// Toggle reports the state of an engagement toggle after it was applied.
type Toggle struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}
