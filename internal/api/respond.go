package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicore/scheduling-engine/internal/booking"
	"github.com/clinicore/scheduling-engine/internal/directory"
	"github.com/clinicore/scheduling-engine/internal/schedule"
	"github.com/clinicore/scheduling-engine/internal/waitlist"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	Data         any            `json:"data,omitempty"`
	Errors       []string       `json:"errors,omitempty"`
	Alternatives []SlotResponse `json:"alternatives,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, errs ...string) {
	writeJSON(w, status, Response{Success: false, Message: message, Errors: errs})
}

// handleError maps the error taxonomy onto HTTP statuses. Conflicts carry
// their alternative slots in the envelope.
func handleError(w http.ResponseWriter, err error) {
	var (
		validation *booking.ValidationError
		conflict   *booking.ConflictError
		immutable  *booking.ImmutableStateError
		transition *booking.InvalidTransitionError
		policy     *booking.PolicyViolationError
		dependency *booking.DependencyError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation failed", validation.Error())
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, Response{
			Success:      false,
			Message:      conflict.Message,
			Errors:       []string{conflict.Error()},
			Alternatives: toSlotResponses(conflict.Alternatives),
		})
	case errors.As(err, &immutable):
		writeError(w, http.StatusConflict, "appointment is immutable", immutable.Error())
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid status transition", transition.Error())
	case errors.As(err, &policy):
		writeError(w, http.StatusUnprocessableEntity, "policy violation", policy.Error())
	case errors.As(err, &dependency):
		writeError(w, http.StatusBadGateway, "dependency failure", dependency.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound),
		errors.Is(err, schedule.ErrScheduleNotFound),
		errors.Is(err, waitlist.ErrEntryNotFound),
		errors.Is(err, directory.ErrPatientNotFound),
		errors.Is(err, directory.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, waitlist.ErrNotOffered),
		errors.Is(err, waitlist.ErrOfferExpired):
		writeError(w, http.StatusConflict, "offer not actionable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
