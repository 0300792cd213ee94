package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/collabhub/collabhub/internal/platform/clock"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 5, 4, 3, 0, 0, 0, time.UTC))
	metrics := NewMetrics(prometheus.NewRegistry()).WithClock(fake)

	tracker := metrics.Track("sessions:sweep")
	fake.Advance(2 * time.Second)
	assert.NoError(t, tracker.End(nil))

	boom := errors.New("boom")
	assert.ErrorIs(t, metrics.Track("sessions:sweep").End(boom), boom)
	metrics.SweepRemoved(3)
	metrics.SweepRemoved(0)
	metrics.NoticeSent()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("sessions:sweep", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("sessions:sweep", "failure")))
	assert.Equal(t, float64(fake.Now().Unix()), testutil.ToFloat64(metrics.lastSuccess.WithLabelValues("sessions:sweep")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.sweepRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.noticesSent))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, metrics.WithClock(clock.Real()).Track("x").End(boom), boom)
	metrics.SweepRemoved(1)
	metrics.NoticeSent()
}
