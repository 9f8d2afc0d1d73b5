// Package timers defines the persistence boundary for timers and alarms,
// plus the spoken-duration grammar used to create and describe them.
package timers

import (
	"context"
	"time"
)

// Record is one pending timer or alarm.
type Record struct {
	// ID uniquely identifies the record.
	ID string

	// Label is the optional spoken label ("pasta", "laundry"). Empty for
	// unlabeled timers.
	Label string

	// FireAt is when the timer is due.
	FireAt time.Time

	// CreatedAt is when the timer was set.
	CreatedAt time.Time
}

// Remaining returns the time left until the record fires, never negative.
func (r Record) Remaining(now time.Time) time.Duration {
	d := r.FireAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Store persists timer records. Implementations must be safe for concurrent
// use; the turn loop and the announcer poll the same store.
type Store interface {
	// Create persists a new record.
	Create(ctx context.Context, rec Record) error

	// List returns all pending records ordered by fire-at time.
	List(ctx context.Context) ([]Record, error)

	// Update replaces the fire-at time of an existing record. Returns an
	// error if no record has the given id.
	Update(ctx context.Context, id string, fireAt time.Time) error

	// Cancel deletes a record. Returns an error if no record has the
	// given id.
	Cancel(ctx context.Context, id string) error

	// PopExpired atomically removes and returns all records due at or
	// before now, ordered by fire-at time. Each due record is returned
	// exactly once across all callers.
	PopExpired(ctx context.Context, now time.Time) ([]Record, error)
}
