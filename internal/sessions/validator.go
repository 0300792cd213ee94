package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/collabhub/collabhub/internal/platform/clock"
)

// ValidatorConfig collects the dependencies of a Validator.
type ValidatorConfig struct {
	Store     Store
	SessionID string
	Clock     clock.Clock
	Logger    *slog.Logger
	Recorder  Recorder
	// Interval between checks. Defaults to DefaultCheckInterval.
	Interval time.Duration
	// Window is the inactivity window. Defaults to DefaultInactivityWindow.
	Window time.Duration
	// MaxStaleness bounds how long failed checks may keep the previous
	// state before the validator falls back to expired.
	MaxStaleness time.Duration
}

// Validator re-checks one session on a fixed interval and publishes its
// lifecycle state to subscribers. It never signs the device out itself.
type Validator struct {
	store        Store
	sessionID    string
	clock        clock.Clock
	logger       *slog.Logger
	recorder     Recorder
	interval     time.Duration
	window       time.Duration
	maxStaleness time.Duration

	group singleflight.Group

	mu          sync.Mutex
	status      Status
	createdAt   time.Time
	lastSuccess time.Time
	failures    int
	subs        map[int]chan Status
	nextSub     int
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewValidator constructs a stopped Validator in the unknown state.
func NewValidator(cfg ValidatorConfig) *Validator {
	v := &Validator{
		store:        cfg.Store,
		sessionID:    cfg.SessionID,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		recorder:     cfg.Recorder,
		interval:     cfg.Interval,
		window:       cfg.Window,
		maxStaleness: cfg.MaxStaleness,
		subs:         make(map[int]chan Status),
	}
	if v.clock == nil {
		v.clock = clock.Real()
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if v.recorder == nil {
		v.recorder = nopRecorder{}
	}
	if v.interval <= 0 {
		v.interval = DefaultCheckInterval
	}
	if v.window <= 0 {
		v.window = DefaultInactivityWindow
	}
	if v.maxStaleness <= 0 {
		v.maxStaleness = DefaultMaxStaleness
	}
	v.createdAt = v.clock.Now()
	v.status = Status{State: StateUnknown}
	return v
}

// Start checks immediately and then on every interval until ctx is done or
// Stop is called.
func (v *Validator) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.cancel != nil {
		v.mu.Unlock()
		return ErrValidatorRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v.cancel = cancel
	v.done = done
	v.mu.Unlock()

	go v.loop(ctx, done)
	return nil
}

// Stop cancels the recurring check and waits for it to exit.
func (v *Validator) Stop() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (v *Validator) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		v.mu.Lock()
		if v.done == done {
			v.cancel()
			v.cancel = nil
			v.done = nil
		}
		v.mu.Unlock()
		close(done)
	}()

	ticker := v.clock.NewTicker(v.interval)
	defer ticker.Stop()

	v.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			v.tick(ctx)
		}
	}
}

func (v *Validator) tick(ctx context.Context) {
	if _, err := v.Check(ctx); err != nil && ctx.Err() == nil {
		v.mu.Lock()
		failures := v.failures
		v.mu.Unlock()
		v.logger.Warn("session check failed, keeping last state",
			slog.String("session_id", v.sessionID),
			slog.Int("failures", failures),
			slog.Any("error", err))
	}
}

// Check runs one confirmation read. Concurrent calls share a single read.
// On store failure the previous status is returned with the error.
func (v *Validator) Check(ctx context.Context) (Status, error) {
	ch := v.group.DoChan(v.sessionID, func() (interface{}, error) {
		return v.check(ctx)
	})
	select {
	case <-ctx.Done():
		return v.Status(), ctx.Err()
	case res := <-ch:
		st, _ := res.Val.(Status)
		return st, res.Err
	}
}

func (v *Validator) check(ctx context.Context) (Status, error) {
	now := v.clock.Now()
	status, err := Inspect(ctx, v.store, v.sessionID, now, v.window)

	v.mu.Lock()
	if err != nil {
		v.failures++
		since := v.lastSuccess
		if since.IsZero() {
			since = v.createdAt
		}
		if now.Sub(since) < v.maxStaleness || v.status.State == StateExpired {
			prev := v.status
			v.mu.Unlock()
			return prev, err
		}
		status = Status{State: StateExpired, Reason: ReasonUnverifiable, CheckedAt: now}
		v.logger.Warn("session unverifiable past staleness bound, expiring",
			slog.String("session_id", v.sessionID),
			slog.Duration("since_last_success", now.Sub(since)))
	} else {
		v.failures = 0
		v.lastSuccess = now
	}
	v.status = status
	v.publishLocked(status)
	v.mu.Unlock()

	v.recorder.SessionChecked(string(status.State))
	if status.State == StateExpired && status.Reason == ReasonInactivity {
		if err := v.store.Delete(ctx, v.sessionID); err != nil {
			v.logger.Warn("delete lapsed session", slog.String("session_id", v.sessionID), slog.Any("error", err))
		} else {
			v.recorder.SessionsEnded(EndReasonInactivity, 1)
		}
	}
	return status, nil
}

// Status returns the last published status.
func (v *Validator) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Subscribe returns a channel carrying the latest status and a function that
// unsubscribes and closes it. Slow readers only see the newest status.
func (v *Validator) Subscribe() (<-chan Status, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	ch := make(chan Status, 1)
	if v.status.State != StateUnknown {
		ch <- v.status
	}
	v.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			close(ch)
		})
	}
}

func (v *Validator) publishLocked(st Status) {
	for _, ch := range v.subs {
		select {
		case ch <- st:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
