package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScheduleNotFound = errors.New("provider schedule not found")
)

// Repository contains all DB interactions needed by the availability engine
// and schedule administration.
type Repository interface {
	Create(ctx context.Context, s *ProviderSchedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*ProviderSchedule, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]ProviderSchedule, error)

	// ActiveForDate resolves the single schedule applying to provider+date.
	// Returns ErrScheduleNotFound when none applies.
	ActiveForDate(ctx context.Context, providerID uuid.UUID, date time.Time) (*ProviderSchedule, error)

	CreateOverride(ctx context.Context, o *DateOverride) error
	OverridesInRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]DateOverride, error)
}
