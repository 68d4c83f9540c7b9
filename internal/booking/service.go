package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/availability"
	"github.com/clinicore/scheduling-engine/internal/config"
	"github.com/clinicore/scheduling-engine/internal/directory"
)

const (
	DefaultDurationMinutes = 30
	MinDurationMinutes     = 5
	MaxDurationMinutes     = 480

	// MaxAlternatives bounds the fallback slots attached to a conflict.
	MaxAlternatives = 5
)

// AvailabilityFinder is the slice of the availability engine the booking
// core consumes.
type AvailabilityFinder interface {
	SlotFor(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, appointmentType string) (*availability.Slot, error)
	Alternatives(ctx context.Context, providerID uuid.UUID, around time.Time, durationMinutes int, appointmentType string, limit int) ([]availability.Slot, error)
}

// ReminderPlanner recomputes time-relative notifications for an appointment.
type ReminderPlanner interface {
	ScheduleFor(ctx context.Context, appointmentID uuid.UUID, scheduledTime time.Time) error
	CancelFor(ctx context.Context, appointmentID uuid.UUID) error
}

// WaitlistNotifier is invoked when a slot is released so a standing waitlist
// entry can be offered the freed time. Backfill is eventual, not atomic with
// the release.
type WaitlistNotifier interface {
	OfferForRelease(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, appointmentType string) error
}

type Service struct {
	repo      Repository
	slots     availability.SlotStore
	finder    AvailabilityFinder
	directory directory.Client
	reminders ReminderPlanner
	waitlist  WaitlistNotifier
	cfg       config.Config
	logger    *zap.Logger

	now func() time.Time
}

func NewService(
	repo Repository,
	slots availability.SlotStore,
	finder AvailabilityFinder,
	dir directory.Client,
	reminders ReminderPlanner,
	waitlist WaitlistNotifier,
	cfg config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		slots:     slots,
		finder:    finder,
		directory: dir,
		reminders: reminders,
		waitlist:  waitlist,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

type CreateRequest struct {
	PatientID       uuid.UUID
	ProviderID      uuid.UUID
	DepartmentID    *uuid.UUID
	FacilityID      *uuid.UUID
	Type            string
	Mode            ConsultationMode
	ScheduledTime   time.Time
	DurationMinutes int
	Fee             *float64
	WaitlistEntryID *uuid.UUID
}

// CreateAppointment validates the request, reserves the covering slot with
// the atomic conditional increment, and persists the appointment as
// scheduled. On conflict the returned error carries alternative slots from
// the ±2h window; the caller decides whether to accept one.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, []Event, error) {
	if err := s.validateCreate(&req); err != nil {
		return nil, nil, err
	}

	slot, err := s.reserveSlot(ctx, req.ProviderID, req.ScheduledTime, req.DurationMinutes, req.Type)
	if err != nil {
		return nil, nil, err
	}

	appt := &Appointment{
		ID:              uuid.New(),
		PatientID:       req.PatientID,
		ProviderID:      req.ProviderID,
		DepartmentID:    req.DepartmentID,
		FacilityID:      req.FacilityID,
		SlotID:          slot.ID,
		Type:            req.Type,
		Mode:            req.Mode,
		Status:          StatusScheduled,
		ScheduledTime:   req.ScheduledTime,
		DurationMinutes: req.DurationMinutes,
		PaymentStatus:   PaymentPending,
		WaitlistEntryID: req.WaitlistEntryID,
	}
	appt.Number = newAppointmentNumber(appt.ScheduledTime, appt.ID)

	s.denormalize(ctx, appt, req.Fee)

	if err := s.repo.Create(ctx, appt); err != nil {
		// The reservation already succeeded; compensate before surfacing.
		if relErr := s.slots.Release(ctx, slot.ID); relErr != nil {
			s.logger.Error("failed to roll back slot reservation",
				zap.String("slot_id", slot.ID.String()), zap.Error(relErr))
		}
		return nil, nil, fmt.Errorf("persist appointment: %w", err)
	}

	var events []Event
	s.record(ctx, &events, newEvent(EventAppointmentCreated, appt.ID, map[string]any{
		"number":         appt.Number,
		"patient_id":     appt.PatientID.String(),
		"provider_id":    appt.ProviderID.String(),
		"scheduled_time": appt.ScheduledTime,
	}))

	if err := s.reminders.ScheduleFor(ctx, appt.ID, appt.ScheduledTime); err != nil {
		s.logger.Warn("failed to schedule reminders",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
	}

	return appt, events, nil
}

type UpdateRequest struct {
	ScheduledTime   *time.Time
	DurationMinutes *int
}

// UpdateAppointment moves an appointment to a new time under the same
// reservation discipline as creation: the new slot is reserved first, the
// old one released only after the row update succeeds.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Appointment, []Event, error) {
	if req.ScheduledTime == nil && req.DurationMinutes == nil {
		return nil, nil, &ValidationError{Field: "request", Reason: "no updatable fields supplied"}
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := guardTransition(appt.Status, StatusRescheduled); err != nil {
		return nil, nil, err
	}

	newTime := appt.ScheduledTime
	if req.ScheduledTime != nil {
		newTime = *req.ScheduledTime
	}
	newDuration := appt.DurationMinutes
	if req.DurationMinutes != nil {
		newDuration = *req.DurationMinutes
	}
	if err := s.validateTiming(newTime, newDuration); err != nil {
		return nil, nil, err
	}

	slot, err := s.reserveSlot(ctx, appt.ProviderID, newTime, newDuration, appt.Type)
	if err != nil {
		return nil, nil, err
	}

	entry := RescheduleEntry{From: appt.ScheduledTime, To: newTime, At: s.now()}
	updated, err := s.repo.Reschedule(ctx, appt.ID, NonTerminalReschedulable(), newTime, newDuration, slot.ID, entry)
	if err != nil {
		if relErr := s.slots.Release(ctx, slot.ID); relErr != nil {
			s.logger.Error("failed to roll back slot reservation",
				zap.String("slot_id", slot.ID.String()), zap.Error(relErr))
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil, &ConflictError{Message: "appointment changed concurrently, please retry"}
		}
		return nil, nil, fmt.Errorf("reschedule appointment: %w", err)
	}

	// Release the previously held slot once the row points at the new one.
	if err := s.slots.Release(ctx, appt.SlotID); err != nil {
		s.logger.Error("failed to release old slot after reschedule",
			zap.String("slot_id", appt.SlotID.String()), zap.Error(err))
	}

	if err := s.reminders.CancelFor(ctx, appt.ID); err != nil {
		s.logger.Warn("failed to cancel reminders before recompute",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
	}
	if err := s.reminders.ScheduleFor(ctx, appt.ID, newTime); err != nil {
		s.logger.Warn("failed to reschedule reminders",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
	}

	var events []Event
	s.record(ctx, &events, newEvent(EventAppointmentRescheduled, appt.ID, map[string]any{
		"from": appt.ScheduledTime,
		"to":   newTime,
	}))
	s.record(ctx, &events, newEvent(EventAppointmentUpdated, appt.ID, map[string]any{
		"reschedule_count": updated.RescheduleCount,
	}))

	return updated, events, nil
}

// Confirm moves a scheduled or rescheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, []Event, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := guardTransition(appt.Status, StatusConfirmed); err != nil {
		return nil, nil, err
	}

	updated, err := s.transition(ctx, appt.ID, []Status{StatusScheduled, StatusRescheduled}, StatusConfirmed, TransitionFields{})
	if err != nil {
		return nil, nil, err
	}

	var events []Event
	s.record(ctx, &events, newEvent(EventAppointmentConfirmed, appt.ID, nil))
	return updated, events, nil
}

// CheckIn is allowed from scheduled/confirmed, once, and only inside the
// [scheduledTime-30m, scheduledTime+15m] window.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, []Event, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := guardTransition(appt.Status, StatusCheckedIn); err != nil {
		return nil, nil, err
	}
	if appt.CheckedInAt != nil {
		return nil, nil, &InvalidTransitionError{From: appt.Status, To: StatusCheckedIn, Reason: "already checked in"}
	}

	now := s.now()
	earliest := appt.ScheduledTime.Add(-CheckInEarly)
	latest := appt.ScheduledTime.Add(CheckInLate)
	if now.Before(earliest) || now.After(latest) {
		return nil, nil, &InvalidTransitionError{
			From: appt.Status, To: StatusCheckedIn,
			Reason: fmt.Sprintf("check-in window is %s to %s", earliest.Format(time.RFC3339), latest.Format(time.RFC3339)),
		}
	}

	updated, err := s.transition(ctx, appt.ID, []Status{StatusScheduled, StatusConfirmed}, StatusCheckedIn, TransitionFields{CheckedInAt: &now})
	if err != nil {
		return nil, nil, err
	}

	var events []Event
	s.record(ctx, &events, newEvent(EventAppointmentCheckedIn, appt.ID, map[string]any{"at": now}))
	return updated, events, nil
}

// Start moves a checked-in appointment to in_progress.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Appointment, []Event, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := guardTransition(appt.Status, StatusInProgress); err != nil {
		return nil, nil, err
	}

	updated, err := s.transition(ctx, appt.ID, []Status{StatusCheckedIn}, StatusInProgress, TransitionFields{})
	if err != nil {
		return nil, nil, err
	}

	var events []Event
	s.record(ctx, &events, newEvent(EventAppointmentStarted, appt.ID, nil))
	return updated, events, nil
}

// Complete requires a prior check-in.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, []Event, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := guardTransition(appt.Status, StatusCompleted); err != nil {
		return nil, nil, err
	}
	if appt.CheckedInAt == nil {
		return nil, nil, &InvalidTransitionError{From: appt.Status, To: StatusCompleted, Reason: "patient was never checked in"}
	}

	now := s.now()
	updated, err := s.transition(ctx, appt.ID, []Status{StatusCheckedIn, StatusInProgress}, StatusCompleted, TransitionFields{CompletedAt: &now})
	if err != nil {
		return nil, nil, err
	}

	var events []Event
	s.record(ctx, &events, newEvent(EventAppointmentCompleted, appt.ID, map[string]any{"at": now}))
	return updated, events, nil
}

// NoShow may be declared 30 minutes past the scheduled time for a patient
// who never checked in. It releases the slot like a cancellation.
func (s *Service) NoShow(ctx context.Context, id uuid.UUID) (*Appointment, []Event, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := guardTransition(appt.Status, StatusNoShow); err != nil {
		return nil, nil, err
	}
	if appt.CheckedInAt != nil {
		return nil, nil, &InvalidTransitionError{From: appt.Status, To: StatusNoShow, Reason: "patient already checked in"}
	}
	if s.now().Before(appt.ScheduledTime.Add(NoShowDeadline)) {
		return nil, nil, &InvalidTransitionError{
			From: appt.Status, To: StatusNoShow,
			Reason: fmt.Sprintf("no-show may only be declared %s after the scheduled time", NoShowDeadline),
		}
	}

	updated, err := s.transition(ctx, appt.ID, []Status{StatusScheduled, StatusConfirmed}, StatusNoShow, TransitionFields{})
	if err != nil {
		return nil, nil, err
	}

	var events []Event
	s.record(ctx, &events, newEvent(EventAppointmentNoShow, appt.ID, nil))

	s.releaseAndBackfill(ctx, appt)
	if err := s.reminders.CancelFor(ctx, appt.ID); err != nil {
		s.logger.Warn("failed to cancel reminders after no-show",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
	}

	return updated, events, nil
}

// Cancel applies the tiered refund policy, releases the slot and invokes
// the waitlist matcher. The engine computes the refund but never moves
// money; billing consumes the refund_requested event.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason, category string) (*Appointment, []Event, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := guardTransition(appt.Status, StatusCancelled); err != nil {
		return nil, nil, err
	}

	refund, err := RefundForCancellation(s.now(), appt.ScheduledTime, appt.Fee)
	if err != nil {
		return nil, nil, err
	}

	fields := TransitionFields{
		CancellationReason:   &reason,
		CancellationCategory: &category,
		RefundAmount:         &refund,
	}
	if refund > 0 && appt.PaymentStatus == PaymentPaid {
		refunded := PaymentRefunded
		fields.PaymentStatus = &refunded
	}

	updated, err := s.transition(ctx, appt.ID, NonTerminalCancellable(), StatusCancelled, fields)
	if err != nil {
		return nil, nil, err
	}

	var events []Event
	s.record(ctx, &events, newEvent(EventAppointmentCancelled, appt.ID, map[string]any{
		"reason":   reason,
		"category": category,
	}))
	s.record(ctx, &events, newEvent(EventRefundRequested, appt.ID, map[string]any{
		"amount": refund,
	}))

	s.releaseAndBackfill(ctx, appt)
	if err := s.reminders.CancelFor(ctx, appt.ID); err != nil {
		s.logger.Warn("failed to cancel reminders after cancellation",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
	}

	return updated, events, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SearchAppointments(ctx context.Context, f SearchFilter) ([]Appointment, error) {
	return s.repo.Search(ctx, f)
}

// reserveSlot resolves the covering slot and claims capacity with the
// conditional increment, retrying the resolution once on a race loss.
func (s *Service) reserveSlot(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, appointmentType string) (*availability.Slot, error) {
	for attempt := 0; attempt < 2; attempt++ {
		slot, err := s.finder.SlotFor(ctx, providerID, start, durationMinutes, appointmentType)
		if err != nil {
			return nil, fmt.Errorf("resolve availability: %w", err)
		}
		if slot == nil {
			return nil, s.conflict(ctx, providerID, start, durationMinutes, appointmentType, "no open slot covers the requested time")
		}

		if err := s.slots.Materialize(ctx, slot); err != nil {
			return nil, err
		}
		ok, err := s.slots.Reserve(ctx, slot.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			slot.CurrentAppointments++
			return slot, nil
		}
		// Race loss: someone filled the slot between read and reserve.
	}
	return nil, s.conflict(ctx, providerID, start, durationMinutes, appointmentType, "slot filled up while booking")
}

func (s *Service) conflict(ctx context.Context, providerID uuid.UUID, around time.Time, durationMinutes int, appointmentType, msg string) error {
	alts, err := s.finder.Alternatives(ctx, providerID, around, durationMinutes, appointmentType, MaxAlternatives)
	if err != nil {
		s.logger.Warn("failed to search alternative slots",
			zap.String("provider_id", providerID.String()), zap.Error(err))
	}
	return &ConflictError{Message: msg, Alternatives: alts}
}

// denormalize populates the display snapshots and the default fee. Each
// directory lookup gets one retry, then booking proceeds with nulled fields
// rather than blocking on the collaborator.
func (s *Service) denormalize(ctx context.Context, appt *Appointment, fee *float64) {
	provider, err := s.lookupProvider(ctx, appt.ProviderID)
	if err != nil {
		s.logger.Warn("provider lookup degraded, booking with nulled snapshot",
			zap.String("provider_id", appt.ProviderID.String()),
			zap.Error(&DependencyError{Op: "GetProviderDisplayInfo", Err: err}))
	} else {
		appt.ProviderSnapshot = provider
	}

	switch {
	case fee != nil:
		appt.Fee = *fee
	case provider != nil:
		appt.Fee = provider.BaseFee
	}

	patient, err := s.lookupPatient(ctx, appt.PatientID)
	if err != nil {
		s.logger.Warn("patient lookup degraded, booking with nulled snapshot",
			zap.String("patient_id", appt.PatientID.String()),
			zap.Error(&DependencyError{Op: "GetPatientDisplayInfo", Err: err}))
	} else {
		appt.PatientSnapshot = patient
	}
}

func (s *Service) lookupProvider(ctx context.Context, id uuid.UUID) (*directory.ProviderInfo, error) {
	info, err := s.directory.GetProviderDisplayInfo(ctx, id)
	if err == nil {
		return info, nil
	}
	return s.directory.GetProviderDisplayInfo(ctx, id)
}

func (s *Service) lookupPatient(ctx context.Context, id uuid.UUID) (*directory.PatientInfo, error) {
	info, err := s.directory.GetPatientDisplayInfo(ctx, id)
	if err == nil {
		return info, nil
	}
	return s.directory.GetPatientDisplayInfo(ctx, id)
}

// releaseAndBackfill frees the slot and hands it to the waitlist matcher.
// The two are deliberately not atomic; a momentary free-but-unoffered
// window is acceptable.
func (s *Service) releaseAndBackfill(ctx context.Context, appt *Appointment) {
	if err := s.slots.Release(ctx, appt.SlotID); err != nil {
		s.logger.Error("failed to release slot",
			zap.String("slot_id", appt.SlotID.String()), zap.Error(err))
		return
	}
	if err := s.waitlist.OfferForRelease(ctx, appt.ProviderID, appt.ScheduledTime, appt.DurationMinutes, appt.Type); err != nil {
		s.logger.Warn("waitlist backfill failed, slot stays open",
			zap.String("provider_id", appt.ProviderID.String()), zap.Error(err))
	}
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from []Status, to Status, fields TransitionFields) (*Appointment, error) {
	updated, err := s.repo.Transition(ctx, id, from, to, fields)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row moved out from under us between read and update.
			return nil, &ConflictError{Message: "appointment changed concurrently, please retry"}
		}
		return nil, fmt.Errorf("transition to %s: %w", to, err)
	}
	return updated, nil
}

func (s *Service) record(ctx context.Context, events *[]Event, ev Event) {
	*events = append(*events, ev)
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to persist event",
			zap.String("event_type", ev.Type), zap.Error(err))
	}
}

func (s *Service) validateCreate(req *CreateRequest) error {
	if req.PatientID == uuid.Nil {
		return &ValidationError{Field: "patient_id", Reason: "required"}
	}
	if req.ProviderID == uuid.Nil {
		return &ValidationError{Field: "provider_id", Reason: "required"}
	}
	if req.Type == "" {
		return &ValidationError{Field: "type", Reason: "required"}
	}
	if req.ScheduledTime.IsZero() {
		return &ValidationError{Field: "scheduled_time", Reason: "required"}
	}
	if req.Mode == "" {
		req.Mode = ModeInPerson
	}
	if req.DurationMinutes == 0 {
		req.DurationMinutes = DefaultDurationMinutes
	}
	return s.validateTiming(req.ScheduledTime, req.DurationMinutes)
}

func (s *Service) validateTiming(scheduled time.Time, durationMinutes int) error {
	lead := scheduled.Sub(s.now())
	if lead < s.cfg.MinLeadTime {
		return &ValidationError{Field: "scheduled_time",
			Reason: fmt.Sprintf("must be at least %s from now", s.cfg.MinLeadTime)}
	}
	if lead > s.cfg.MaxLeadTime {
		return &ValidationError{Field: "scheduled_time",
			Reason: fmt.Sprintf("must be within %s from now", s.cfg.MaxLeadTime)}
	}
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return &ValidationError{Field: "duration_minutes",
			Reason: fmt.Sprintf("must be between %d and %d", MinDurationMinutes, MaxDurationMinutes)}
	}
	return nil
}

// NonTerminalCancellable lists the statuses a cancellation may act on.
func NonTerminalCancellable() []Status {
	return []Status{StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress, StatusRescheduled}
}

// NonTerminalReschedulable lists the statuses a time change may act on.
func NonTerminalReschedulable() []Status {
	return []Status{StatusScheduled, StatusConfirmed, StatusRescheduled}
}
