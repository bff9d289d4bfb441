package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/classboard/classboard/internal/access"
	jobmetrics "github.com/classboard/classboard/internal/jobs"
)

const defaultRetentionDays = 365

// AuditStore is the persistence the audit jobs write to.
type AuditStore interface {
	Record(ctx context.Context, event access.AuditEvent) error
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// AuditJob handles audit record and purge tasks.
type AuditJob struct {
	Store   AuditStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditJob initialises the audit task handlers.
func NewAuditJob(store AuditStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditJob {
	return &AuditJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handlers returns the task registrations for the worker.
func (j *AuditJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskAuditRecord, Handler: j.HandleRecord},
		{Type: TaskAuditPurge, Handler: j.HandlePurge},
	}
}

// HandleRecord persists the event carried by the task. Malformed payloads
// are dropped without retry.
func (j *AuditJob) HandleRecord(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("audit record: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAuditRecord)
	defer func() { err = tracker.End(err) }()

	var event access.AuditEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		j.logger().Warn("audit record dropped", slog.Any("error", err))
		return asynq.SkipRetry
	}

	if err := j.Store.Record(ctx, event); err != nil {
		j.logger().Error("audit record failed", slog.String("action", event.Action), slog.Any("error", err))
		return err
	}
	return nil
}

// HandlePurge deletes events older than the retention window.
func (j *AuditJob) HandlePurge(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("audit purge: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAuditPurge)
	defer func() { err = tracker.End(err) }()

	var payload AuditPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = defaultRetentionDays
	}

	before := j.clock().AddDate(0, 0, -payload.RetentionDays)
	removed, err := j.Store.Purge(ctx, before)
	if err != nil {
		j.logger().Error("audit purge failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("audit purge completed", slog.Int64("removed", removed), slog.Time("before", before))
	return nil
}

func (j *AuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
