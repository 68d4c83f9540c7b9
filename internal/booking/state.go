package booking

import "time"

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCheckedIn   Status = "checked_in"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

// Check-in is accepted from 30 minutes before to 15 minutes after the
// scheduled time; a no-show may only be declared 30 minutes after it.
const (
	CheckInEarly   = 30 * time.Minute
	CheckInLate    = 15 * time.Minute
	NoShowDeadline = 30 * time.Minute
)

// transitions is the closed table of allowed status changes. Anything not
// listed here is rejected.
var transitions = map[Status][]Status{
	StatusScheduled:   {StatusConfirmed, StatusCheckedIn, StatusCancelled, StatusNoShow, StatusRescheduled},
	StatusConfirmed:   {StatusCheckedIn, StatusCancelled, StatusNoShow, StatusRescheduled},
	StatusCheckedIn:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress:  {StatusCompleted, StatusCancelled},
	StatusRescheduled: {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusCompleted:   {},
	StatusCancelled:   {},
	StatusNoShow:      {},
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// HoldsCapacity reports whether an appointment in this status occupies its
// slot for overlap and capacity purposes.
func (s Status) HoldsCapacity() bool {
	return !s.Terminal()
}

// CanTransition consults the transition table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// guardTransition converts a disallowed pair into the right taxonomy error.
func guardTransition(from, to Status) error {
	if from.Terminal() {
		return &ImmutableStateError{Status: from}
	}
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// NonTerminalStatuses is the set used by overlap queries and conditional
// updates that must only touch live appointments.
func NonTerminalStatuses() []string {
	return []string{
		string(StatusScheduled),
		string(StatusConfirmed),
		string(StatusCheckedIn),
		string(StatusInProgress),
		string(StatusRescheduled),
	}
}
