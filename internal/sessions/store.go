package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the session record does not exist.
	ErrNotFound = errors.New("sessions: not found")
	// ErrDuplicate indicates a record with the same id already exists.
	ErrDuplicate = errors.New("sessions: duplicate id")
	// ErrStoreUnavailable wraps every I/O failure reaching the backing store.
	ErrStoreUnavailable = errors.New("sessions: store unavailable")
	// ErrNoActor is returned when an operation needs an actor and none is bound.
	ErrNoActor = errors.New("sessions: no actor bound")
	// ErrValidatorRunning is returned by Start on a running validator.
	ErrValidatorRunning = errors.New("sessions: validator already running")
)

// Store is the durable home of session records. Implementations perform
// single record writes only; no operation spans records atomically.
type Store interface {
	Create(ctx context.Context, rec Record) error
	// Get returns ErrNotFound when the record is absent.
	Get(ctx context.Context, id string) (Record, error)
	ListByUser(ctx context.Context, userID string) ([]Record, error)
	// Delete of an absent id is a no-op.
	Delete(ctx context.Context, id string) error
	// Touch sets LastActivity; ErrNotFound when the record is absent.
	Touch(ctx context.Context, id string, at time.Time) error
}

// Sweeper removes records whose last activity is older than cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("sessions: %s: %w: %w", op, ErrStoreUnavailable, err)
}
