package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/config"
	redisclient "github.com/clinicore/scheduling-engine/internal/redis"
)

const (
	EventWaitlistCreated = "waitlist.created"
	EventSlotOffered     = "waitlist.slot_offered"

	// ScanDepth caps how many lowest-position entries a release considers.
	ScanDepth = 5
)

var (
	ErrNotOffered   = errors.New("entry has no pending offer")
	ErrOfferExpired = errors.New("offer response deadline has passed")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	logger *zap.Logger

	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type AddRequest struct {
	PatientID       uuid.UUID
	ProviderID      uuid.UUID
	AppointmentType string
	Urgency         Urgency
	PreferredFrom   time.Time
	PreferredUntil  time.Time
	Windows         []TimeWindow
}

// Add places a patient on the provider's waitlist at the next position.
func (s *Service) Add(ctx context.Context, req AddRequest) (*Entry, error) {
	if req.PatientID == uuid.Nil || req.ProviderID == uuid.Nil {
		return nil, errors.New("patient_id and provider_id are required")
	}
	if req.AppointmentType == "" {
		return nil, errors.New("appointment_type is required")
	}
	if !req.PreferredFrom.Before(req.PreferredUntil) {
		return nil, errors.New("preferred date range is empty")
	}
	if req.Urgency == "" {
		req.Urgency = UrgencyRoutine
	}

	entry := &Entry{
		ID:              uuid.New(),
		PatientID:       req.PatientID,
		ProviderID:      req.ProviderID,
		AppointmentType: req.AppointmentType,
		Urgency:         req.Urgency,
		PreferredFrom:   req.PreferredFrom,
		PreferredUntil:  req.PreferredUntil,
		Windows:         req.Windows,
		Status:          StatusActive,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.repo.InsertEvent(ctx, EventWaitlistCreated, map[string]any{
		"entry_id":    entry.ID.String(),
		"provider_id": entry.ProviderID.String(),
		"position":    entry.Position,
	}); err != nil {
		s.logger.Error("failed to persist waitlist event", zap.Error(err))
	}

	return entry, nil
}

// OfferForRelease runs the matcher for a freed slot: scan the lowest
// positions, offer to the first match, nobody else. The per-provider lock
// keeps two concurrent releases from offering to two entries at once.
func (s *Service) OfferForRelease(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, appointmentType string) error {
	return s.locker.WithProviderLock(ctx, providerID, func(lockCtx context.Context) error {
		now := s.now()

		// Lazy expiry: offers past their deadline rejoin the candidate pool
		// before this release is matched.
		if n, err := s.repo.ReleaseExpiredOffers(lockCtx, providerID, now); err != nil {
			return err
		} else if n > 0 {
			s.logger.Info("expired waitlist offers released",
				zap.String("provider_id", providerID.String()), zap.Int("count", n))
		}

		candidates, err := s.repo.ActiveByPosition(lockCtx, providerID, ScanDepth)
		if err != nil {
			return fmt.Errorf("load waitlist candidates: %w", err)
		}

		for i := range candidates {
			e := &candidates[i]
			if !e.Matches(start, appointmentType) {
				continue
			}

			deadline := now.Add(s.cfg.OfferTTL)
			offered, err := s.repo.MarkOffered(lockCtx, e.ID, start, deadline)
			if err != nil {
				if errors.Is(err, ErrEntryNotFound) {
					continue // entry moved concurrently, try the next one
				}
				return fmt.Errorf("mark entry offered: %w", err)
			}

			if err := s.repo.InsertEvent(lockCtx, EventSlotOffered, map[string]any{
				"entry_id":         offered.ID.String(),
				"provider_id":      providerID.String(),
				"slot_start":       start,
				"duration_minutes": durationMinutes,
				"respond_by":       deadline,
			}); err != nil {
				s.logger.Error("failed to persist waitlist event", zap.Error(err))
			}

			s.logger.Info("slot offered to waitlist entry",
				zap.String("entry_id", offered.ID.String()),
				zap.Int64("position", offered.Position),
				zap.Time("slot_start", start))
			return nil
		}

		// No match among the scanned entries; the matcher runs again on the
		// next qualifying release.
		return nil
	})
}

// Respond resolves a pending offer. Accepting marks the entry booked; the
// caller then books the slot through the normal booking core. Expiry is
// checked lazily here.
func (s *Service) Respond(ctx context.Context, entryID uuid.UUID, accept bool) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusOffered {
		return nil, ErrNotOffered
	}
	if entry.OfferExpired(s.now()) {
		if _, err := s.repo.UpdateStatus(ctx, entryID, StatusOffered, StatusActive); err != nil && !errors.Is(err, ErrEntryNotFound) {
			s.logger.Error("failed to release expired offer", zap.Error(err))
		}
		return nil, ErrOfferExpired
	}

	to := StatusDeclined
	if accept {
		to = StatusBooked
	}
	updated, err := s.repo.UpdateStatus(ctx, entryID, StatusOffered, to)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Expire marks an entry whose preferred range has fully passed.
func (s *Service) Expire(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	return s.repo.UpdateStatus(ctx, entryID, StatusActive, StatusExpired)
}

func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]Entry, error) {
	return s.repo.ListByProvider(ctx, providerID)
}
