package waitlist

import (
	"time"

	"github.com/google/uuid"
)

type EntryStatus string

const (
	StatusActive   EntryStatus = "active"
	StatusOffered  EntryStatus = "offered"
	StatusDeclined EntryStatus = "declined"
	StatusBooked   EntryStatus = "booked"
	StatusExpired  EntryStatus = "expired"
)

type Urgency string

const (
	UrgencyRoutine Urgency = "routine"
	UrgencyUrgent  Urgency = "urgent"
)

// TimeWindow is a preferred time-of-day range in minutes from midnight,
// e.g. 540-720 for 09:00-12:00.
type TimeWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Contains reports whether a minute-of-day falls inside the window.
func (w TimeWindow) Contains(minuteOfDay int) bool {
	return minuteOfDay >= w.StartMinute && minuteOfDay <= w.EndMinute
}

// Entry is a patient's standing request for an earlier slot with one
// provider. Position is FIFO per provider, monotonically increasing and
// never reused.
type Entry struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ProviderID      uuid.UUID
	AppointmentType string
	Urgency         Urgency
	PreferredFrom   time.Time
	PreferredUntil  time.Time
	Windows         []TimeWindow
	Position        int64
	Status          EntryStatus

	OfferedSlotStart *time.Time
	OfferExpiresAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Matches reports whether a released slot fits this entry: the start must
// fall inside the preferred date range, the type must match exactly, and if
// time-of-day windows were given the start's minute-of-day must land in one.
func (e *Entry) Matches(slotStart time.Time, appointmentType string) bool {
	if e.AppointmentType != appointmentType {
		return false
	}
	if slotStart.Before(e.PreferredFrom) || slotStart.After(e.PreferredUntil) {
		return false
	}
	if len(e.Windows) == 0 {
		return true
	}
	minute := slotStart.Hour()*60 + slotStart.Minute()
	for _, w := range e.Windows {
		if w.Contains(minute) {
			return true
		}
	}
	return false
}

// OfferExpired reports whether a pending offer has passed its deadline.
func (e *Entry) OfferExpired(now time.Time) bool {
	return e.Status == StatusOffered && e.OfferExpiresAt != nil && e.OfferExpiresAt.Before(now)
}
