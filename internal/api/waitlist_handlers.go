package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/waitlist"
)

func addWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddWaitlistRequest
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

		entry, err := svc.Add(r.Context(), waitlist.AddRequest{
			PatientID:       patientID,
			ProviderID:      providerID,
			AppointmentType: req.AppointmentType,
			Urgency:         waitlist.Urgency(req.Urgency),
			PreferredFrom:   req.PreferredFrom,
			PreferredUntil:  req.PreferredUntil,
			Windows:         req.Windows,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not add to waitlist", err.Error())
			return
		}

		writeData(w, http.StatusCreated, "waitlist entry created", toWaitlistResponse(entry))
	}
}

func listWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(r.URL.Query().Get("providerId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "providerId is required and must be a valid UUID")
			return
		}

		entries, err := svc.ListByProvider(r.Context(), providerID)
		if err != nil {
			handleError(w, err)
			return
		}

		out := make([]WaitlistEntryResponse, 0, len(entries))
		for i := range entries {
			out = append(out, toWaitlistResponse(&entries[i]))
		}
		writeData(w, http.StatusOK, "waitlist entries", out)
	}
}

func respondWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req RespondWaitlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON", err.Error())
			return
		}

		entry, err := svc.Respond(r.Context(), id, req.Accept)
		if err != nil {
			handleError(w, err)
			return
		}

		writeData(w, http.StatusOK, "waitlist offer resolved", toWaitlistResponse(entry))
	}
}
