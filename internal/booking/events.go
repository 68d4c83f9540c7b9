package booking

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentCreated     = "appointment.created"
	EventAppointmentUpdated     = "appointment.updated"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventAppointmentConfirmed   = "appointment.confirmed"
	EventAppointmentCheckedIn   = "appointment.checked_in"
	EventAppointmentStarted     = "appointment.started"
	EventAppointmentCompleted   = "appointment.completed"
	EventAppointmentNoShow      = "appointment.no_show"
	EventRefundRequested        = "appointment.refund_requested"
)

// Event is one domain event produced by a mutation. Events are returned to
// the caller as an outbox list (so tests can assert them without a bus) and
// persisted to the event log in the same call path.
type Event struct {
	Type          string
	AppointmentID *uuid.UUID
	Payload       map[string]any
	OccurredAt    time.Time
}

func newEvent(eventType string, appointmentID uuid.UUID, payload map[string]any) Event {
	id := appointmentID
	return Event{
		Type:          eventType,
		AppointmentID: &id,
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
