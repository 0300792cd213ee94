// Package sessions tracks the live device sessions of authenticated actors
// and derives their lifecycle state.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/collabhub/collabhub/internal/platform/clock"
)

// Recorder receives session lifecycle events for metrics.
type Recorder interface {
	SessionChecked(state string)
	SessionsEnded(reason string, n int)
}

type nopRecorder struct{}

func (nopRecorder) SessionChecked(string)     {}
func (nopRecorder) SessionsEnded(string, int) {}

// Reasons passed to Recorder.SessionsEnded.
const (
	EndReasonUser       = "user"
	EndReasonOthers     = "others"
	EndReasonInactivity = "inactivity"
	EndReasonSweep      = "sweep"
)

// RegistryConfig collects the collaborators of a Registry.
type RegistryConfig struct {
	Clock    clock.Clock
	Logger   *slog.Logger
	Recorder Recorder
	// NewID allocates session ids. Defaults to random UUIDs.
	NewID func() string
}

// Registry mediates the session records of one actor on behalf of one
// device. The id of the session this device created is held only here.
type Registry struct {
	store    Store
	clock    clock.Clock
	logger   *slog.Logger
	recorder Recorder
	newID    func() string

	mu      sync.Mutex
	actor   Actor
	current string
}

// NewRegistry constructs a Registry with no actor bound.
func NewRegistry(store Store, cfg RegistryConfig) *Registry {
	r := &Registry{
		store:    store,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
		newID:    cfg.NewID,
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.recorder == nil {
		r.recorder = nopRecorder{}
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.NewString() }
	}
	return r
}

// ForDevice returns a Registry sharing r's collaborators, bound to actor and
// to the session id the device restored from its local state.
func (r *Registry) ForDevice(actor Actor, currentID string) *Registry {
	return &Registry{
		store:    r.store,
		clock:    r.clock,
		logger:   r.logger,
		recorder: r.recorder,
		newID:    r.newID,
		actor:    actor,
		current:  currentID,
	}
}

// CreateSession persists a new record for actor and makes it this device's
// current session.
func (r *Registry) CreateSession(ctx context.Context, actor Actor, device DeviceInfo, loc Location) (Record, error) {
	if actor.UserID == "" {
		return Record{}, ErrNoActor
	}
	now := r.clock.Now().UTC()
	rec := Record{
		ID:           r.newID(),
		UserID:       actor.UserID,
		UserEmail:    actor.Email,
		Device:       device,
		Location:     loc,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := r.store.Create(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create session: %w", err)
	}
	r.mu.Lock()
	r.actor = actor
	r.current = rec.ID
	r.mu.Unlock()
	r.logger.Info("session created",
		slog.String("session_id", rec.ID),
		slog.String("user_id", rec.UserID),
		slog.String("device", string(device.Type)))
	return rec, nil
}

// UserSessions returns a fresh snapshot of userID's records. Order is
// unspecified.
func (r *Registry) UserSessions(ctx context.Context, userID string) ([]Record, error) {
	recs, err := r.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return recs, nil
}

// EndSpecificSession deletes the record with id. Ending an absent record,
// or one owned by another actor than the bound one, is a no-op. When id is
// the current session the caller must sign this device out.
func (r *Registry) EndSpecificSession(ctx context.Context, id string) error {
	actor := r.Actor()
	if actor.UserID != "" {
		rec, err := r.store.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		if rec.UserID != actor.UserID {
			r.logger.Warn("end session owned by another actor ignored",
				slog.String("session_id", id),
				slog.String("user_id", actor.UserID))
			return nil
		}
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	r.recorder.SessionsEnded(EndReasonUser, 1)
	r.logger.Info("session ended", slog.String("session_id", id))
	return nil
}

// EndAllOtherSessions deletes every record of the bound actor except
// currentID, one record at a time. A session created concurrently may
// survive. It returns how many records were deleted; failures on single
// records do not stop the remaining deletions.
func (r *Registry) EndAllOtherSessions(ctx context.Context, currentID string) (int, error) {
	actor := r.Actor()
	if actor.UserID == "" {
		return 0, ErrNoActor
	}
	recs, err := r.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		return 0, fmt.Errorf("end other sessions: %w", err)
	}
	var (
		ended int
		errs  []error
	)
	for _, rec := range recs {
		if rec.ID == currentID {
			continue
		}
		if err := r.store.Delete(ctx, rec.ID); err != nil {
			errs = append(errs, fmt.Errorf("end session %s: %w", rec.ID, err))
			continue
		}
		ended++
	}
	if ended > 0 {
		r.recorder.SessionsEnded(EndReasonOthers, ended)
	}
	r.logger.Info("other sessions ended",
		slog.String("user_id", actor.UserID),
		slog.Int("count", ended))
	return ended, errors.Join(errs...)
}

// CurrentSessionID returns the session created or restored by this device.
func (r *Registry) CurrentSessionID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != ""
}

// Actor returns the bound actor.
func (r *Registry) Actor() Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actor
}

// Forget clears the current session id after a local sign-out.
func (r *Registry) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
}

// Touch refreshes the last activity of the current session.
func (r *Registry) Touch(ctx context.Context) error {
	id, ok := r.CurrentSessionID()
	if !ok {
		return ErrNotFound
	}
	if err := r.store.Touch(ctx, id, r.clock.Now().UTC()); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}
