package availability

import (
	"time"

	"github.com/google/uuid"
)

// Slot is a bounded time interval with booking capacity, derived from a
// provider schedule. Slots are reconcilable from the schedule plus existing
// appointments; the persisted row only exists so capacity can be claimed
// with a single conditional update.
type Slot struct {
	ID                  uuid.UUID // zero until materialized
	ProviderID          uuid.UUID
	DepartmentID        *uuid.UUID
	FacilityID          *uuid.UUID
	StartTime           time.Time
	EndTime             time.Time
	MaxAppointments     int
	CurrentAppointments int
}

// Available reports whether the slot still has capacity.
func (s Slot) Available() bool {
	return s.CurrentAppointments < s.MaxAppointments
}

// Overlaps is the standard half-open interval test.
func (s Slot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}

// AppointmentWindow is the booked interval of a non-terminal appointment,
// as seen by the availability engine.
type AppointmentWindow struct {
	Start time.Time
	End   time.Time
}
