// Package jobmetrics instruments background jobs and queue depth.
package jobmetrics

import (
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	// StatusDropped marks tasks rejected with asynq.SkipRetry.
	StatusDropped = "dropped"
)

// Metrics holds the job collectors.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	depth    *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the
// process-wide default registerer when registerer is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() { defaultMetrics = register(prometheus.DefaultRegisterer) })
	return defaultMetrics
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classboard_jobs_total",
			Help: "Job runs by task type and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classboard_jobs_failures_total",
			Help: "Job runs that returned an error and will be retried.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classboard_job_duration_seconds",
			Help:    "Job run duration by task type.",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"job"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "classboard_jobs_queue_depth",
			Help: "Tasks waiting in a queue by state, sampled on health checks.",
		}, []string{"queue", "state"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.depth)
	return m
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job. A nil Metrics yields a no-op tracker.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the outcome of the run and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := StatusSuccess
	switch {
	case errors.Is(err, asynq.SkipRetry):
		status = StatusDropped
	case err != nil:
		status = StatusFailure
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// ObserveQueue records the pending, retry and archived counts of queue.
func (m *Metrics) ObserveQueue(queue string, pending, retry, archived int) {
	if m == nil {
		return
	}
	m.depth.WithLabelValues(queue, "pending").Set(float64(pending))
	m.depth.WithLabelValues(queue, "retry").Set(float64(retry))
	m.depth.WithLabelValues(queue, "archived").Set(float64(archived))
}
