package access

import (
	"context"
	"time"
)

// Audit outcomes.
const (
	OutcomeExecuted = "executed"
	OutcomeGranted  = "granted"
	OutcomeDenied   = "denied"
)

// AuditEvent describes an executed privileged action.
type AuditEvent struct {
	ActorID string         `json:"actor_id"`
	Action  string         `json:"action"`
	Target  string         `json:"target"`
	Outcome string         `json:"outcome"`
	At      time.Time      `json:"at"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// AuditSink receives audit events. Emit is fire-and-forget: implementations
// must not block the caller on delivery and report failures themselves.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, event AuditEvent)

// Emit calls f.
func (f AuditSinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }

type nopSink struct{}

func (nopSink) Emit(context.Context, AuditEvent) {}

// ItemTarget formats an audit target for a content item.
func ItemTarget(kind Kind, id string) string { return string(kind) + ":" + id }
