package sessions

import (
	"context"
	"errors"
	"time"
)

// Lifecycle defaults.
const (
	DefaultInactivityWindow = 8 * time.Hour
	DefaultCheckInterval    = 60 * time.Second
	DefaultMaxStaleness     = 5 * time.Minute

	warningThreshold  = 2 * time.Hour
	expiringThreshold = time.Hour
)

// LifecycleState is the derived validity class of a session.
type LifecycleState string

// Lifecycle states.
const (
	StateUnknown  LifecycleState = "unknown"
	StateActive   LifecycleState = "active"
	StateWarning  LifecycleState = "warning"
	StateExpiring LifecycleState = "expiring"
	StateExpired  LifecycleState = "expired"
)

// RequiresSignOut reports whether the owning device must drop its credentials.
func (s LifecycleState) RequiresSignOut() bool {
	return s == StateExpired
}

// ExpiryReason explains an expired state.
type ExpiryReason string

// Expiry reasons.
const (
	// ReasonEnded means the record was confirmed absent from the store.
	ReasonEnded ExpiryReason = "ended"
	// ReasonInactivity means the inactivity window elapsed.
	ReasonInactivity ExpiryReason = "inactivity"
	// ReasonUnverifiable means the store stayed unreachable past the staleness bound.
	ReasonUnverifiable ExpiryReason = "unverifiable"
)

// Status is a point-in-time lifecycle observation.
type Status struct {
	State        LifecycleState
	Reason       ExpiryReason
	Remaining    time.Duration
	ExpiresAt    time.Time
	LastActivity time.Time
	CheckedAt    time.Time
}

// Classify maps the time left before lastActivity+window lapses to a state.
func Classify(lastActivity, now time.Time, window time.Duration) (LifecycleState, time.Duration) {
	remaining := lastActivity.Add(window).Sub(now)
	switch {
	case remaining <= 0:
		return StateExpired, 0
	case remaining <= expiringThreshold:
		return StateExpiring, remaining
	case remaining <= warningThreshold:
		return StateWarning, remaining
	default:
		return StateActive, remaining
	}
}

// Inspect performs one confirmation read for id and classifies the result.
// An absent record is expired regardless of time. Store failures are
// returned with a StateUnknown status and must not be read as expiry.
func Inspect(ctx context.Context, store Store, id string, now time.Time, window time.Duration) (Status, error) {
	if id == "" {
		return Status{State: StateExpired, Reason: ReasonEnded, CheckedAt: now}, nil
	}
	rec, err := store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Status{State: StateExpired, Reason: ReasonEnded, CheckedAt: now}, nil
	}
	if err != nil {
		return Status{State: StateUnknown, CheckedAt: now}, err
	}
	state, remaining := Classify(rec.LastActivity, now, window)
	st := Status{
		State:        state,
		Remaining:    remaining,
		ExpiresAt:    rec.ExpiresAt(window),
		LastActivity: rec.LastActivity,
		CheckedAt:    now,
	}
	if state == StateExpired {
		st.Reason = ReasonInactivity
	}
	return st, nil
}
