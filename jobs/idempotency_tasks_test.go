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

	jobmetrics "github.com/classboard/classboard/internal/jobs"
)

type fakeKeyCleaner struct {
	olderThan time.Duration
	err       error
}

func (f *fakeKeyCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	f.olderThan = olderThan
	return f.err
}

func TestIdempotencyCleanupMaxAge(t *testing.T) {
	keys := &fakeKeyCleaner{}
	job := NewIdempotencyJob(keys, nil, nil)

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{MaxAgeHours: 12})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 12*time.Hour, keys.olderThan)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, defaultKeyMaxAge, keys.olderThan)
}

func TestIdempotencyCleanupFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := NewIdempotencyJob(&fakeKeyCleaner{err: errors.New("db down")}, nil, jobmetrics.NewMetrics(reg))

	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, float64(1), counterValue(t, reg, "classboard_jobs_failures_total", TaskIdempotencyCleanup, ""))

	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("nope")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
