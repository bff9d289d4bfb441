// Package moderation implements content reports and the soft-hide
// workflow moderators use to act on them.
package moderation

import (
	"fmt"
	"time"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/shared"
)

// Status enumerates report states.
type Status string

const (
	StatusOpen        Status = "OPEN"
	StatusDismissed   Status = "DISMISSED"
	StatusActionTaken Status = "ACTION_TAKEN"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool { return s == StatusDismissed || s == StatusActionTaken }

// ContentRef points at a reported item.
type ContentRef struct {
	Kind access.Kind `json:"kind"`
	ID   string      `json:"id"`
}

func (c ContentRef) String() string { return access.ItemTarget(c.Kind, c.ID) }

// Report is a user complaint about a content item.
type Report struct {
	ID         string     `json:"id"`
	ReporterID string     `json:"reporter_id"`
	Target     ContentRef `json:"target"`
	Reason     string     `json:"reason"`
	Status     Status     `json:"status"`
	HandledBy  string     `json:"handled_by,omitempty"`
	HandledAt  *time.Time `json:"handled_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Dismiss closes the report without action.
func (r Report) Dismiss(moderatorID string, at time.Time) (Report, error) {
	return r.handle(StatusDismissed, moderatorID, at)
}

// TakeAction closes the report after its target was hidden.
func (r Report) TakeAction(moderatorID string, at time.Time) (Report, error) {
	return r.handle(StatusActionTaken, moderatorID, at)
}

func (r Report) handle(next Status, moderatorID string, at time.Time) (Report, error) {
	if r.Status != StatusOpen {
		return Report{}, fmt.Errorf("%w: report %s already %s", shared.ErrConflict, r.ID, r.Status)
	}
	r.Status = next
	r.HandledBy = moderatorID
	r.HandledAt = &at
	return r, nil
}

// CreateReportInput files a report.
type CreateReportInput struct {
	ContentID string `json:"content_id" validate:"required,max=64"`
	Reason    string `json:"reason" validate:"required,max=500"`
}

// HideInput names the item a moderator hides while handling a report.
// Both fields must match the report target.
type HideInput struct {
	Kind      string `json:"kind" validate:"required"`
	ContentID string `json:"content_id" validate:"required"`
}

// ListFilter narrows report listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}
