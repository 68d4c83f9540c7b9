package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/directory"
)

type ConsultationMode string

const (
	ModeInPerson ConsultationMode = "in_person"
	ModeVideo    ConsultationMode = "video"
	ModePhone    ConsultationMode = "phone"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// RescheduleEntry records one historical time change.
type RescheduleEntry struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
	At   time.Time `json:"at"`
}

// Appointment is the central entity of the engine. Rows are never deleted;
// cancellation and no-show are terminal statuses.
type Appointment struct {
	ID           uuid.UUID
	Number       string
	PatientID    uuid.UUID
	ProviderID   uuid.UUID
	DepartmentID *uuid.UUID
	FacilityID   *uuid.UUID
	SlotID       uuid.UUID

	Type   string
	Mode   ConsultationMode
	Status Status

	ScheduledTime   time.Time
	DurationMinutes int

	Fee           float64
	PaymentStatus PaymentStatus

	RescheduleCount   int
	RescheduleHistory []RescheduleEntry

	CancellationReason   *string
	CancellationCategory *string
	RefundAmount         *float64

	CheckedInAt *time.Time
	CompletedAt *time.Time

	WaitlistEntryID *uuid.UUID

	// Display snapshots taken at creation so later renders stay stable
	// even if directory records change. Nil when the directory lookup
	// degraded at booking time.
	PatientSnapshot  *directory.PatientInfo
	ProviderSnapshot *directory.ProviderInfo

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EndTime is the exclusive end of the booked interval.
func (a *Appointment) EndTime() time.Time {
	return a.ScheduledTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// newAppointmentNumber builds a human-readable booking reference like
// APT-20250310-1A2B3C.
func newAppointmentNumber(scheduled time.Time, id uuid.UUID) string {
	return fmt.Sprintf("APT-%s-%X", scheduled.Format("20060102"), id[:3])
}
