package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEntryNotFound = errors.New("waitlist entry not found")
)

// Repository contains all DB interactions needed by the matcher.
type Repository interface {
	// Create inserts the entry, assigning the next position for its
	// provider in the same statement so positions stay monotonic under
	// concurrent additions.
	Create(ctx context.Context, e *Entry) error

	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Entry, error)

	// ActiveByPosition returns up to limit active entries for the provider,
	// lowest position first.
	ActiveByPosition(ctx context.Context, providerID uuid.UUID, limit int) ([]Entry, error)

	// MarkOffered conditionally moves an active entry to offered with the
	// slot start and response deadline. Returns ErrEntryNotFound when the
	// entry was no longer active.
	MarkOffered(ctx context.Context, id uuid.UUID, slotStart, deadline time.Time) (*Entry, error)

	// UpdateStatus is the conditional from→to transition.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to EntryStatus) (*Entry, error)

	// ReleaseExpiredOffers flips offered entries whose deadline passed back
	// to active so the next slot release can consider them again.
	ReleaseExpiredOffers(ctx context.Context, providerID uuid.UUID, now time.Time) (int, error)

	InsertEvent(ctx context.Context, eventType string, payload map[string]any) error
}
