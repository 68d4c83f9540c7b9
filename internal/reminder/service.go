package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventReminderScheduled  = "appointment.reminder_scheduled"
	EventRemindersCancelled = "appointment.reminders_cancelled"

	dispatchBatchSize = 100
)

// Service computes, stores and cancels reminder schedules. It implements
// booking.ReminderPlanner.
type Service struct {
	repo   Repository
	logger *zap.Logger

	now func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// ScheduleFor computes and persists the reminder set for an appointment
// time. Candidates already in the past are skipped.
func (s *Service) ScheduleFor(ctx context.Context, appointmentID uuid.UUID, scheduledTime time.Time) error {
	reminders := Plan(s.now(), appointmentID, scheduledTime)
	if len(reminders) == 0 {
		s.logger.Debug("no reminders to schedule, all candidates in the past",
			zap.String("appointment_id", appointmentID.String()))
		return nil
	}

	if err := s.repo.InsertBatch(ctx, reminders); err != nil {
		return err
	}

	fireTimes := make([]time.Time, 0, len(reminders))
	for _, r := range reminders {
		fireTimes = append(fireTimes, r.FireAt)
	}
	if err := s.repo.InsertEvent(ctx, EventReminderScheduled, appointmentID, map[string]any{
		"count":      len(reminders),
		"fire_times": fireTimes,
	}); err != nil {
		s.logger.Error("failed to persist reminder event", zap.Error(err))
	}

	return nil
}

// CancelFor cancels every pending reminder of an appointment, wholesale.
// Called before recomputation on reschedule and on cancellation/no-show.
func (s *Service) CancelFor(ctx context.Context, appointmentID uuid.UUID) error {
	n, err := s.repo.CancelForAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	if err := s.repo.InsertEvent(ctx, EventRemindersCancelled, appointmentID, map[string]any{
		"count": n,
	}); err != nil {
		s.logger.Error("failed to persist reminder event", zap.Error(err))
	}
	return nil
}

// DispatchDue claims reminders whose fire time has passed and hands them to
// the notification collaborator (represented here by the event log). Called
// periodically by the reminder worker.
func (s *Service) DispatchDue(ctx context.Context) (int, error) {
	due, err := s.repo.ClaimDue(ctx, s.now(), dispatchBatchSize)
	if err != nil {
		return 0, err
	}

	for _, rem := range due {
		s.logger.Info("reminder dispatched",
			zap.String("appointment_id", rem.AppointmentID.String()),
			zap.String("channel", string(rem.Channel)),
			zap.Duration("lead", rem.LeadTime))
	}
	return len(due), nil
}

func (s *Service) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Reminder, error) {
	return s.repo.ListForAppointment(ctx, appointmentID)
}
