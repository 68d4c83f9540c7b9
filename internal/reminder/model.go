package reminder

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type ReminderStatus string

const (
	StatusPending    ReminderStatus = "pending"
	StatusDispatched ReminderStatus = "dispatched"
	StatusCancelled  ReminderStatus = "cancelled"
)

// LeadTimes are the offsets before the appointment at which reminders fire.
var LeadTimes = []time.Duration{24 * time.Hour, 2 * time.Hour}

// Channels lists every delivery channel a reminder is computed for.
var Channels = []Channel{ChannelEmail, ChannelSMS}

// Reminder is one (channel, lead time, fire-at) tuple for an appointment.
// Delivery itself belongs to the notification collaborator; the engine only
// computes timing and marks dispatch.
type Reminder struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	Channel       Channel
	LeadTime      time.Duration
	FireAt        time.Time
	Status        ReminderStatus
	CreatedAt     time.Time
}

// Plan computes the reminder set for an appointment time. Candidates whose
// fire time is not after now are skipped; reminders are never scheduled
// retroactively.
func Plan(now time.Time, appointmentID uuid.UUID, scheduledTime time.Time) []Reminder {
	var out []Reminder
	for _, lead := range LeadTimes {
		fireAt := scheduledTime.Add(-lead)
		if !fireAt.After(now) {
			continue
		}
		for _, ch := range Channels {
			out = append(out, Reminder{
				ID:            uuid.New(),
				AppointmentID: appointmentID,
				Channel:       ch,
				LeadTime:      lead,
				FireAt:        fireAt,
				Status:        StatusPending,
			})
		}
	}
	return out
}
