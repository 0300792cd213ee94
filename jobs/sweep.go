package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/collabhub/collabhub/internal/jobs"
	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/sessions"
)

// SweepJob deletes session records nobody has touched for a full inactivity
// window. Validators delete lapsed records they observe; the sweep catches
// the ones no device checks any more.
type SweepJob struct {
	Sweeper  sessions.Sweeper
	Window   time.Duration
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Recorder sessions.Recorder
	Clock    clock.Clock
}

// NewSweepJob initialises the sweep handler.
func NewSweepJob(sweeper sessions.Sweeper, window time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *SweepJob {
	return &SweepJob{
		Sweeper: sweeper,
		Window:  window,
		Logger:  logger,
		Metrics: metrics,
		Clock:   clock.Real(),
	}
}

// WithRecorder reports removed sessions as ended with reason sweep.
func (j *SweepJob) WithRecorder(r sessions.Recorder) *SweepJob {
	j.Recorder = r
	return j
}

// Handle executes one sweep.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Sweeper == nil {
		return errors.New("sessions sweep: handler not configured")
	}
	var payload SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("sessions sweep: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	window := payload.Window
	if window <= 0 {
		window = j.Window
	}
	if window <= 0 {
		window = sessions.DefaultInactivityWindow
	}

	tracker := j.Metrics.Track(TaskSessionsSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().Add(-window)
	removed, err := j.Sweeper.Sweep(ctx, cutoff)
	if err != nil {
		j.logger().Error("sessions sweep failed", slog.Time("cutoff", cutoff), slog.Any("error", err))
		return err
	}
	j.Metrics.SweepRemoved(removed)
	if j.Recorder != nil {
		j.Recorder.SessionsEnded(sessions.EndReasonSweep, removed)
	}
	j.logger().Info("sessions sweep complete", slog.Int("removed", removed), slog.Time("cutoff", cutoff))
	return nil
}

func (j *SweepJob) now() time.Time {
	if j.Clock == nil {
		return time.Now().UTC()
	}
	return j.Clock.Now().UTC()
}

func (j *SweepJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
