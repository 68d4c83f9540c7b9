package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/availability"
)

func searchAvailabilityHandler(engine *availability.Engine, defaultDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		providerID, err := uuid.Parse(q.Get("providerId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "providerId is required and must be a valid UUID")
			return
		}

		from := time.Now()
		if t, err := queryTime(q.Get("dateFrom")); err != nil {
			writeError(w, http.StatusBadRequest, "dateFrom must be RFC 3339")
			return
		} else if t != nil {
			from = *t
		}

		to := from.AddDate(0, 0, defaultDays)
		if t, err := queryTime(q.Get("dateTo")); err != nil {
			writeError(w, http.StatusBadRequest, "dateTo must be RFC 3339")
			return
		} else if t != nil {
			to = *t
		}

		query := availability.Query{
			ProviderID:      providerID,
			AppointmentType: q.Get("type"),
			From:            from,
			To:              to,
			IncludeWeekends: q.Get("includeWeekends") == "true",
			MaxResults:      queryInt(q.Get("maxResults")),
		}
		if query.DepartmentID, err = queryUUID(q.Get("departmentId")); err != nil {
			writeError(w, http.StatusBadRequest, "departmentId must be a valid UUID")
			return
		}
		if query.FacilityID, err = queryUUID(q.Get("facilityId")); err != nil {
			writeError(w, http.StatusBadRequest, "facilityId must be a valid UUID")
			return
		}

		slots, err := engine.Search(r.Context(), query)
		if err != nil {
			handleError(w, err)
			return
		}

		writeData(w, http.StatusOK, "available slots", toSlotResponses(slots))
	}
}
