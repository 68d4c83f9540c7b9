package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the reminder scheduler
// and the dispatch worker.
type Repository interface {
	InsertBatch(ctx context.Context, reminders []Reminder) error

	// CancelForAppointment marks every pending reminder of the appointment
	// cancelled, returning how many were affected.
	CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int, error)

	// ClaimDue conditionally flips pending reminders whose fire time has
	// passed to dispatched and returns them; each row is claimed exactly
	// once across concurrent workers.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Reminder, error)

	ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Reminder, error)

	InsertEvent(ctx context.Context, eventType string, appointmentID uuid.UUID, payload map[string]any) error
}
