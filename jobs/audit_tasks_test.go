package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classboard/classboard/internal/access"
	jobmetrics "github.com/classboard/classboard/internal/jobs"
)

type memAuditStore struct {
	events []access.AuditEvent
	before time.Time
	err    error
}

func (m *memAuditStore) Record(_ context.Context, e access.AuditEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memAuditStore) Purge(_ context.Context, before time.Time) (int64, error) {
	m.before = before
	return 3, m.err
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, job, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["job"] == job && (status == "" || labels["status"] == status) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestHandleRecordPersistsEvent(t *testing.T) {
	store := &memAuditStore{}
	reg := prometheus.NewRegistry()
	job := NewAuditJob(store, nil, jobmetrics.NewMetrics(reg))

	event := access.AuditEvent{ActorID: "admin", Action: "class.override_view", Target: "class:3C", Outcome: access.OutcomeGranted, Meta: map[string]any{"k": "v"}}
	task, err := NewAuditRecordTask(event)
	require.NoError(t, err)
	require.NoError(t, job.HandleRecord(context.Background(), task))

	require.Len(t, store.events, 1)
	got := store.events[0]
	assert.Equal(t, "class.override_view", got.Action)
	assert.Equal(t, "v", got.Meta["k"])
	assert.False(t, got.At.IsZero())
	assert.Equal(t, float64(1), counterValue(t, reg, "classboard_jobs_total", TaskAuditRecord, "success"))
}

func TestHandleRecordFailures(t *testing.T) {
	store := &memAuditStore{err: errors.New("db down")}
	reg := prometheus.NewRegistry()
	job := NewAuditJob(store, nil, jobmetrics.NewMetrics(reg))

	err := job.HandleRecord(context.Background(), asynq.NewTask(TaskAuditRecord, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	task, err := NewAuditRecordTask(access.AuditEvent{ActorID: "a", Action: "post.delete"})
	require.NoError(t, err)
	assert.Error(t, job.HandleRecord(context.Background(), task))
	assert.Equal(t, float64(1), counterValue(t, reg, "classboard_jobs_failures_total", TaskAuditRecord, ""))

	var unconfigured *AuditJob
	assert.Error(t, unconfigured.HandleRecord(context.Background(), task))
}

func TestHandlePurgeUsesRetention(t *testing.T) {
	store := &memAuditStore{}
	job := NewAuditJob(store, nil, nil)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewAuditPurgeTask(AuditPurgePayload{RetentionDays: 30})
	require.NoError(t, err)
	require.NoError(t, job.HandlePurge(context.Background(), task))
	assert.Equal(t, now.AddDate(0, 0, -30), store.before)

	require.NoError(t, job.HandlePurge(context.Background(), asynq.NewTask(TaskAuditPurge, nil)))
	assert.Equal(t, now.AddDate(0, 0, -defaultRetentionDays), store.before)
}

func TestAuditJobHandlers(t *testing.T) {
	handlers := NewAuditJob(&memAuditStore{}, nil, nil).Handlers()
	require.Len(t, handlers, 2)
	assert.Equal(t, TaskAuditRecord, handlers[0].Type)
	assert.Equal(t, TaskAuditPurge, handlers[1].Type)
}
