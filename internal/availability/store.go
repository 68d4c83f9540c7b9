package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound = errors.New("availability slot not found")
)

// SlotStore persists materialized slots and owns the single concurrency
// control point of the engine: Reserve, a conditional increment that only
// succeeds while capacity remains.
type SlotStore interface {
	// Materialize upserts the slot row for (provider, start) and fills in
	// its ID and current appointment count.
	Materialize(ctx context.Context, s *Slot) error

	// Reserve atomically increments current_appointments while it is below
	// max_appointments. Returns false when the slot was full, i.e. the
	// caller lost the race.
	Reserve(ctx context.Context, slotID uuid.UUID) (bool, error)

	// Release decrements current_appointments, never below zero.
	Release(ctx context.Context, slotID uuid.UUID) error

	// UsageIn returns current appointment counts keyed by slot start time
	// for all materialized slots of a provider in [from, to).
	UsageIn(ctx context.Context, providerID uuid.UUID, from, to time.Time) (map[time.Time]int, error)
}

// BookingsSource exposes the intervals held by non-terminal appointments,
// used to subtract booked time during expansion.
type BookingsSource interface {
	ActiveWindows(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]AppointmentWindow, error)
}
