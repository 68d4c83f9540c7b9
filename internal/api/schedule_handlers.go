package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/schedule"
)

func createScheduleHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON", err.Error())
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "provider_id must be a valid UUID")
			return
		}
		if len(req.DaysOfWeek) == 0 || len(req.DayTemplates) == 0 {
			writeError(w, http.StatusBadRequest, "days_of_week and day_templates are required")
			return
		}
		if req.MaxAppointments <= 0 {
			writeError(w, http.StatusBadRequest, "max_appointments must be positive")
			return
		}

		days := make([]time.Weekday, 0, len(req.DaysOfWeek))
		for _, d := range req.DaysOfWeek {
			if d < 0 || d > 6 {
				writeError(w, http.StatusBadRequest, "days_of_week values must be 0 (Sunday) to 6 (Saturday)")
				return
			}
			days = append(days, time.Weekday(d))
		}

		s := &schedule.ProviderSchedule{
			ProviderID:      providerID,
			EffectiveFrom:   req.EffectiveFrom,
			EffectiveUntil:  req.EffectiveUntil,
			DaysOfWeek:      days,
			DayTemplates:    req.DayTemplates,
			MaxAppointments: req.MaxAppointments,
			BufferMinutes:   req.BufferMinutes,
			AllowedTypes:    req.AllowedTypes,
			Priority:        req.Priority,
			Active:          true,
		}
		if s.DepartmentID, err = parseOptionalUUID(req.DepartmentID, "department_id"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if s.FacilityID, err = parseOptionalUUID(req.FacilityID, "facility_id"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := repo.Create(r.Context(), s); err != nil {
			handleError(w, err)
			return
		}

		writeData(w, http.StatusCreated, "schedule created", s)
	}
}

func listSchedulesHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(r.URL.Query().Get("providerId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "providerId is required and must be a valid UUID")
			return
		}

		schedules, err := repo.ListByProvider(r.Context(), providerID)
		if err != nil {
			handleError(w, err)
			return
		}
		writeData(w, http.StatusOK, "schedules", schedules)
	}
}

func createOverrideHandler(repo schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req CreateOverrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON", err.Error())
			return
		}

		sched, err := repo.GetByID(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}

		o := &schedule.DateOverride{
			ProviderID: sched.ProviderID,
			Date:       req.Date,
			Closed:     req.Closed,
			Reason:     req.Reason,
		}
		if err := repo.CreateOverride(r.Context(), o); err != nil {
			handleError(w, err)
			return
		}

		writeData(w, http.StatusCreated, "override created", o)
	}
}
