package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/availability"
)

// SearchFilter narrows an appointment search. Nil/zero fields are ignored.
type SearchFilter struct {
	PatientID    *uuid.UUID
	ProviderID   *uuid.UUID
	DepartmentID *uuid.UUID
	FacilityID   *uuid.UUID
	Type         string
	Status       *Status
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
	SortDesc     bool
}

// TransitionFields carries the columns a conditional status update may set
// alongside the status itself.
type TransitionFields struct {
	CheckedInAt          *time.Time
	CompletedAt          *time.Time
	CancellationReason   *string
	CancellationCategory *string
	RefundAmount         *float64
	PaymentStatus        *PaymentStatus
}

// Repository contains all DB interactions needed by the booking core.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Search(ctx context.Context, f SearchFilter) ([]Appointment, error)

	// ActiveWindows implements availability.BookingsSource: intervals held
	// by non-terminal appointments of a provider.
	ActiveWindows(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]availability.AppointmentWindow, error)

	// Transition performs a conditional status update that only succeeds
	// while the row is in one of the `from` statuses. Returns
	// ErrAppointmentNotFound when the condition did not hold.
	Transition(ctx context.Context, id uuid.UUID, from []Status, to Status, set TransitionFields) (*Appointment, error)

	// Reschedule moves an appointment to a new time/slot under the same
	// conditional discipline, bumping the count and appending history.
	Reschedule(ctx context.Context, id uuid.UUID, from []Status, newTime time.Time, durationMinutes int, newSlotID uuid.UUID, entry RescheduleEntry) (*Appointment, error)

	InsertEvent(ctx context.Context, ev Event) error
}
