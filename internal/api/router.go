package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/availability"
	"github.com/clinicore/scheduling-engine/internal/booking"
	"github.com/clinicore/scheduling-engine/internal/schedule"
	"github.com/clinicore/scheduling-engine/internal/waitlist"
)

type RouterConfig struct {
	Bookings         *booking.Service
	Availability     *availability.Engine
	Waitlist         *waitlist.Service
	Schedules        schedule.Repository
	PgPool           *pgxpool.Pool
	Redis            *redis.Client
	Logger           *zap.Logger
	Env              string
	Version          string
	AvailabilityDays int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Bookings))
		r.Get("/", searchAppointmentsHandler(cfg.Bookings))
		r.Get("/{id}", getAppointmentHandler(cfg.Bookings))
		r.Put("/{id}", updateAppointmentHandler(cfg.Bookings))

		r.Post("/{id}/confirm", transitionHandler("confirmed", func(req *http.Request, id uuid.UUID) (*booking.Appointment, []booking.Event, error) {
			return cfg.Bookings.Confirm(req.Context(), id)
		}))
		r.Post("/{id}/checkin", transitionHandler("checked in", func(req *http.Request, id uuid.UUID) (*booking.Appointment, []booking.Event, error) {
			return cfg.Bookings.CheckIn(req.Context(), id)
		}))
		r.Post("/{id}/start", transitionHandler("started", func(req *http.Request, id uuid.UUID) (*booking.Appointment, []booking.Event, error) {
			return cfg.Bookings.Start(req.Context(), id)
		}))
		r.Post("/{id}/complete", transitionHandler("completed", func(req *http.Request, id uuid.UUID) (*booking.Appointment, []booking.Event, error) {
			return cfg.Bookings.Complete(req.Context(), id)
		}))
		r.Post("/{id}/no-show", transitionHandler("marked no-show", func(req *http.Request, id uuid.UUID) (*booking.Appointment, []booking.Event, error) {
			return cfg.Bookings.NoShow(req.Context(), id)
		}))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Bookings))
	})

	r.Get("/availability", searchAvailabilityHandler(cfg.Availability, cfg.AvailabilityDays))

	r.Route("/waitlist", func(r chi.Router) {
		r.Post("/", addWaitlistHandler(cfg.Waitlist))
		r.Get("/", listWaitlistHandler(cfg.Waitlist))
		r.Post("/{id}/respond", respondWaitlistHandler(cfg.Waitlist))
	})

	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", createScheduleHandler(cfg.Schedules))
		r.Get("/", listSchedulesHandler(cfg.Schedules))
		r.Post("/{id}/overrides", createOverrideHandler(cfg.Schedules))
	})

	return r
}

// writeRaw emits a payload without the success envelope; health checks use
// their own shapes.
func writeRaw(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
