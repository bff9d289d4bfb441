package audit

import (
	"context"
	"log/slog"

	"github.com/classboard/classboard/internal/access"
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event access.AuditEvent) error
}

// Enqueuer hands audit events to the background worker.
type Enqueuer interface {
	EnqueueAudit(ctx context.Context, event access.AuditEvent) error
}

// StoreSink writes events synchronously. Write failures are logged.
type StoreSink struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewStoreSink constructs a StoreSink.
func NewStoreSink(recorder Recorder, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{recorder: recorder, logger: logger}
}

// Emit implements access.AuditSink.
func (s *StoreSink) Emit(ctx context.Context, event access.AuditEvent) {
	if err := s.recorder.Record(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Error("audit record failed", slog.String("action", event.Action), slog.String("target", event.Target), slog.Any("error", err))
	}
}

// QueueSink enqueues events for the worker. When enqueueing fails the event
// goes to the fallback sink, if any.
type QueueSink struct {
	queue    Enqueuer
	fallback access.AuditSink
	logger   *slog.Logger
}

// NewQueueSink constructs a QueueSink. fallback may be nil.
func NewQueueSink(queue Enqueuer, fallback access.AuditSink, logger *slog.Logger) *QueueSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSink{queue: queue, fallback: fallback, logger: logger}
}

// Emit implements access.AuditSink.
func (s *QueueSink) Emit(ctx context.Context, event access.AuditEvent) {
	err := s.queue.EnqueueAudit(context.WithoutCancel(ctx), event)
	if err == nil {
		return
	}
	s.logger.Warn("audit enqueue failed", slog.String("action", event.Action), slog.Any("error", err))
	if s.fallback != nil {
		s.fallback.Emit(ctx, event)
	}
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit implements access.AuditSink.
func (s *LogSink) Emit(ctx context.Context, event access.AuditEvent) {
	level := slog.LevelInfo
	if event.Outcome == access.OutcomeDenied {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "audit",
		slog.String("actor", event.ActorID),
		slog.String("action", event.Action),
		slog.String("target", event.Target),
		slog.String("outcome", event.Outcome),
		slog.Time("at", event.At),
	)
}

// MultiSink fans events out to every sink in order.
type MultiSink []access.AuditSink

// Emit implements access.AuditSink.
func (m MultiSink) Emit(ctx context.Context, event access.AuditEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}
