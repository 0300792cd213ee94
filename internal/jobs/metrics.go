// Package jobmetrics instruments the background workers.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/collabhub/collabhub/internal/platform/clock"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	clock        clock.Clock
	runs         *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lastSuccess  *prometheus.GaugeVec
	sweepRemoved prometheus.Counter
	noticesSent  prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// WithClock swaps the time source used for durations and success timestamps.
func (m *Metrics) WithClock(clk clock.Clock) *Metrics {
	if m != nil && clk != nil {
		m.clock = clk
	}
	return m
}

// Tracker times a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for the given task type.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job}
	}
	return &Tracker{metrics: m, job: job, start: m.clock.Now()}
}

// End records the outcome of the run and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	now := m.clock.Now()
	m.duration.WithLabelValues(t.job).Observe(now.Sub(t.start).Seconds())
	if err != nil {
		m.runs.WithLabelValues(t.job, "failure").Inc()
		return err
	}
	m.runs.WithLabelValues(t.job, "success").Inc()
	m.lastSuccess.WithLabelValues(t.job).Set(float64(now.Unix()))
	return nil
}

// SweepRemoved counts lapsed session records deleted by one sweep.
func (m *Metrics) SweepRemoved(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sweepRemoved.Add(float64(count))
}

// NoticeSent counts delivered sign-in notices.
func (m *Metrics) NoticeSent() {
	if m == nil {
		return
	}
	m.noticesSent.Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		clock: clock.Real(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collabhub_jobs_total",
			Help: "Job executions partitioned by task type and status.",
		}, []string{"job", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collabhub_job_duration_seconds",
			Help:    "Duration in seconds of background job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "collabhub_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per task type.",
		}, []string{"job"}),
		sweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabhub_session_sweep_removed_total",
			Help: "Lapsed device sessions removed by the sweeper.",
		}),
		noticesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collabhub_signin_notices_sent_total",
			Help: "Sign-in notices delivered to account owners.",
		}),
	}
	registerer.MustRegister(m.runs, m.duration, m.lastSuccess, m.sweepRemoved, m.noticesSent)
	return m
}
