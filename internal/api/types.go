package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/availability"
	"github.com/clinicore/scheduling-engine/internal/booking"
	"github.com/clinicore/scheduling-engine/internal/schedule"
	"github.com/clinicore/scheduling-engine/internal/waitlist"
)

type CreateAppointmentRequest struct {
	PatientID       string     `json:"patient_id"`
	ProviderID      string     `json:"provider_id"`
	DepartmentID    *string    `json:"department_id,omitempty"`
	FacilityID      *string    `json:"facility_id,omitempty"`
	Type            string     `json:"type"`
	Mode            string     `json:"mode,omitempty"`
	ScheduledTime   time.Time  `json:"scheduled_time"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Fee             *float64   `json:"fee,omitempty"`
	WaitlistEntryID *string    `json:"waitlist_entry_id,omitempty"`
}

type UpdateAppointmentRequest struct {
	ScheduledTime   *time.Time `json:"scheduled_time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason   string `json:"reason"`
	Category string `json:"category,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	Number          string     `json:"number"`
	PatientID       uuid.UUID  `json:"patient_id"`
	ProviderID      uuid.UUID  `json:"provider_id"`
	DepartmentID    *uuid.UUID `json:"department_id,omitempty"`
	FacilityID      *uuid.UUID `json:"facility_id,omitempty"`
	Type            string     `json:"type"`
	Mode            string     `json:"mode"`
	Status          string     `json:"status"`
	ScheduledTime   time.Time  `json:"scheduled_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Fee             float64    `json:"fee"`
	PaymentStatus   string     `json:"payment_status"`
	RescheduleCount int        `json:"reschedule_count"`
	RefundAmount    *float64   `json:"refund_amount,omitempty"`
	CheckedInAt     *time.Time `json:"checked_in_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	PatientName     string     `json:"patient_name,omitempty"`
	ProviderName    string     `json:"provider_name,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type SlotResponse struct {
	ID                  uuid.UUID `json:"id,omitempty"`
	ProviderID          uuid.UUID `json:"provider_id"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	MaxAppointments     int       `json:"max_appointments"`
	CurrentAppointments int       `json:"current_appointments"`
}

type AddWaitlistRequest struct {
	PatientID       string                `json:"patient_id"`
	ProviderID      string                `json:"provider_id"`
	AppointmentType string                `json:"appointment_type"`
	Urgency         string                `json:"urgency,omitempty"`
	PreferredFrom   time.Time             `json:"preferred_from"`
	PreferredUntil  time.Time             `json:"preferred_until"`
	Windows         []waitlist.TimeWindow `json:"windows,omitempty"`
}

type RespondWaitlistRequest struct {
	Accept bool `json:"accept"`
}

type WaitlistEntryResponse struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	ProviderID       uuid.UUID  `json:"provider_id"`
	AppointmentType  string     `json:"appointment_type"`
	Urgency          string     `json:"urgency"`
	Position         int64      `json:"position"`
	Status           string     `json:"status"`
	OfferedSlotStart *time.Time `json:"offered_slot_start,omitempty"`
	OfferExpiresAt   *time.Time `json:"offer_expires_at,omitempty"`
}

type CreateScheduleRequest struct {
	ProviderID      string                  `json:"provider_id"`
	DepartmentID    *string                 `json:"department_id,omitempty"`
	FacilityID      *string                 `json:"facility_id,omitempty"`
	EffectiveFrom   time.Time               `json:"effective_from"`
	EffectiveUntil  time.Time               `json:"effective_until"`
	DaysOfWeek      []int                   `json:"days_of_week"`
	DayTemplates    []schedule.SlotTemplate `json:"day_templates"`
	MaxAppointments int                     `json:"max_appointments"`
	BufferMinutes   int                     `json:"buffer_minutes,omitempty"`
	AllowedTypes    []string                `json:"allowed_types,omitempty"`
	Priority        int                     `json:"priority,omitempty"`
}

type CreateOverrideRequest struct {
	Date   time.Time `json:"date"`
	Closed bool      `json:"closed"`
	Reason *string   `json:"reason,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		Number:          a.Number,
		PatientID:       a.PatientID,
		ProviderID:      a.ProviderID,
		DepartmentID:    a.DepartmentID,
		FacilityID:      a.FacilityID,
		Type:            a.Type,
		Mode:            string(a.Mode),
		Status:          string(a.Status),
		ScheduledTime:   a.ScheduledTime,
		DurationMinutes: a.DurationMinutes,
		Fee:             a.Fee,
		PaymentStatus:   string(a.PaymentStatus),
		RescheduleCount: a.RescheduleCount,
		RefundAmount:    a.RefundAmount,
		CheckedInAt:     a.CheckedInAt,
		CompletedAt:     a.CompletedAt,
		CreatedAt:       a.CreatedAt,
	}
	if a.PatientSnapshot != nil {
		resp.PatientName = a.PatientSnapshot.Name
	}
	if a.ProviderSnapshot != nil {
		resp.ProviderName = a.ProviderSnapshot.Name
	}
	return resp
}

func toSlotResponses(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			ID:                  s.ID,
			ProviderID:          s.ProviderID,
			StartTime:           s.StartTime,
			EndTime:             s.EndTime,
			MaxAppointments:     s.MaxAppointments,
			CurrentAppointments: s.CurrentAppointments,
		})
	}
	return out
}

func toWaitlistResponse(e *waitlist.Entry) WaitlistEntryResponse {
	return WaitlistEntryResponse{
		ID:               e.ID,
		PatientID:        e.PatientID,
		ProviderID:       e.ProviderID,
		AppointmentType:  e.AppointmentType,
		Urgency:          string(e.Urgency),
		Position:         e.Position,
		Status:           string(e.Status),
		OfferedSlotStart: e.OfferedSlotStart,
		OfferExpiresAt:   e.OfferExpiresAt,
	}
}
