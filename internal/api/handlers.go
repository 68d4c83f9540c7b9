package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/booking"
)

func createAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON", err.Error())
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "patient_id must be a valid UUID")
			return
		}
		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "provider_id must be a valid UUID")
			return
		}

		create := booking.CreateRequest{
			PatientID:       patientID,
			ProviderID:      providerID,
			Type:            req.Type,
			Mode:            booking.ConsultationMode(req.Mode),
			ScheduledTime:   req.ScheduledTime,
			DurationMinutes: req.DurationMinutes,
			Fee:             req.Fee,
		}
		if create.DepartmentID, err = parseOptionalUUID(req.DepartmentID, "department_id"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if create.FacilityID, err = parseOptionalUUID(req.FacilityID, "facility_id"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if create.WaitlistEntryID, err = parseOptionalUUID(req.WaitlistEntryID, "waitlist_entry_id"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		appt, _, err := svc.CreateAppointment(r.Context(), create)
		if err != nil {
			handleError(w, err)
			return
		}

		writeData(w, http.StatusCreated, "appointment created", toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeData(w, http.StatusOK, "appointment", toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON", err.Error())
			return
		}

		appt, _, err := svc.UpdateAppointment(r.Context(), id, booking.UpdateRequest{
			ScheduledTime:   req.ScheduledTime,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			handleError(w, err)
			return
		}
		writeData(w, http.StatusOK, "appointment updated", toAppointmentResponse(appt))
	}
}

func searchAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f booking.SearchFilter
		var err error

		if f.PatientID, err = queryUUID(q.Get("patientId")); err != nil {
			writeError(w, http.StatusBadRequest, "patientId must be a valid UUID")
			return
		}
		if f.ProviderID, err = queryUUID(q.Get("providerId")); err != nil {
			writeError(w, http.StatusBadRequest, "providerId must be a valid UUID")
			return
		}
		if f.DepartmentID, err = queryUUID(q.Get("departmentId")); err != nil {
			writeError(w, http.StatusBadRequest, "departmentId must be a valid UUID")
			return
		}
		if f.FacilityID, err = queryUUID(q.Get("facilityId")); err != nil {
			writeError(w, http.StatusBadRequest, "facilityId must be a valid UUID")
			return
		}
		f.Type = q.Get("type")
		if v := q.Get("status"); v != "" {
			st := booking.Status(v)
			f.Status = &st
		}
		if f.From, err = queryTime(q.Get("dateFrom")); err != nil {
			writeError(w, http.StatusBadRequest, "dateFrom must be RFC 3339")
			return
		}
		if f.To, err = queryTime(q.Get("dateTo")); err != nil {
			writeError(w, http.StatusBadRequest, "dateTo must be RFC 3339")
			return
		}
		f.Limit = queryInt(q.Get("limit"))
		f.Offset = queryInt(q.Get("offset"))
		f.SortDesc = q.Get("sort") == "desc"

		appts, err := svc.SearchAppointments(r.Context(), f)
		if err != nil {
			handleError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeData(w, http.StatusOK, "appointments", out)
	}
}

// transitionHandler builds the handler for one lifecycle endpoint.
func transitionHandler(name string, apply func(r *http.Request, id uuid.UUID) (*booking.Appointment, []booking.Event, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		appt, _, err := apply(r, id)
		if err != nil {
			handleError(w, err)
			return
		}
		writeData(w, http.StatusOK, "appointment "+name, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return transitionHandler("cancelled", func(r *http.Request, id uuid.UUID) (*booking.Appointment, []booking.Event, error) {
		var req CancelAppointmentRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		return svc.Cancel(r.Context(), id, req.Reason, req.Category)
	})
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalUUID(s *string, field string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, &booking.ValidationError{Field: field, Reason: "must be a valid UUID"}
	}
	return &id, nil
}

func queryUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func queryTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
