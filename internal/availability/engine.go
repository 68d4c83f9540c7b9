package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/internal/schedule"
)

const (
	DefaultMaxResults = 50

	// AlternativeWindow bounds the fallback search around a conflicted
	// booking time.
	AlternativeWindow = 2 * time.Hour
)

// Query describes one availability search.
type Query struct {
	ProviderID      uuid.UUID
	DepartmentID    *uuid.UUID
	FacilityID      *uuid.UUID
	AppointmentType string
	From            time.Time
	To              time.Time
	IncludeWeekends bool
	MaxResults      int
}

// Engine expands provider schedules into concrete open slots and subtracts
// time already held by non-terminal appointments. Reads are lock-free and
// may be slightly stale; reservation re-validates at write time.
type Engine struct {
	schedules schedule.Repository
	slots     SlotStore
	bookings  BookingsSource
}

func NewEngine(schedules schedule.Repository, slots SlotStore, bookings BookingsSource) *Engine {
	return &Engine{
		schedules: schedules,
		slots:     slots,
		bookings:  bookings,
	}
}

// Search returns open slots for the query, ascending by start time,
// truncated to MaxResults.
func (e *Engine) Search(ctx context.Context, q Query) ([]Slot, error) {
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultMaxResults
	}
	if !q.From.Before(q.To) {
		return nil, fmt.Errorf("availability range is empty: from %s to %s", q.From, q.To)
	}

	candidates, err := e.expand(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	usage, err := e.slots.UsageIn(ctx, q.ProviderID, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("load slot usage: %w", err)
	}
	windows, err := e.bookings.ActiveWindows(ctx, q.ProviderID, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("load booked windows: %w", err)
	}

	open := make([]Slot, 0, len(candidates))
	for _, s := range candidates {
		if n, ok := usage[s.StartTime.UTC()]; ok {
			s.CurrentAppointments = n
		}
		if !s.Available() {
			continue
		}
		if coveredByBooking(s, windows) {
			continue
		}
		open = append(open, s)
	}

	sort.Slice(open, func(i, j int) bool {
		return open[i].StartTime.Before(open[j].StartTime)
	})
	if len(open) > q.MaxResults {
		open = open[:q.MaxResults]
	}
	return open, nil
}

// SlotFor resolves the slot covering [start, start+duration) for a booking
// request. Returns nil when the schedule offers no such slot or it is full.
func (e *Engine) SlotFor(ctx context.Context, providerID uuid.UUID, start time.Time, durationMinutes int, appointmentType string) (*Slot, error) {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	slots, err := e.Search(ctx, Query{
		ProviderID:      providerID,
		AppointmentType: appointmentType,
		From:            start.Add(-24 * time.Hour).Truncate(24 * time.Hour),
		To:              end.Add(24 * time.Hour),
		IncludeWeekends: true,
		MaxResults:      DefaultMaxResults * 4,
	})
	if err != nil {
		return nil, err
	}

	for i := range slots {
		s := slots[i]
		if !s.StartTime.After(start) && !s.EndTime.Before(end) {
			return &s, nil
		}
	}
	return nil, nil
}

// Alternatives searches the ±2h window around a conflicted time and returns
// up to limit open slots that fit the requested duration.
func (e *Engine) Alternatives(ctx context.Context, providerID uuid.UUID, around time.Time, durationMinutes int, appointmentType string, limit int) ([]Slot, error) {
	slots, err := e.Search(ctx, Query{
		ProviderID:      providerID,
		AppointmentType: appointmentType,
		From:            around.Add(-AlternativeWindow),
		To:              around.Add(AlternativeWindow),
		IncludeWeekends: true,
		MaxResults:      DefaultMaxResults,
	})
	if err != nil {
		return nil, err
	}

	want := time.Duration(durationMinutes) * time.Minute
	out := make([]Slot, 0, limit)
	for _, s := range slots {
		if s.EndTime.Sub(s.StartTime) < want {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// expand walks the date range day by day, resolving the active schedule and
// cutting its templates into candidate slots.
func (e *Engine) expand(ctx context.Context, q Query) ([]Slot, error) {
	overrides, err := e.schedules.OverridesInRange(ctx, q.ProviderID, dayOf(q.From), dayOf(q.To))
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	closed := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		if o.Closed {
			closed[dayKey(o.Date)] = true
		}
	}

	var out []Slot
	for day := dayOf(q.From); !day.After(dayOf(q.To)); day = day.AddDate(0, 0, 1) {
		if !q.IncludeWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			continue
		}
		if closed[dayKey(day)] {
			continue
		}

		sched, err := e.schedules.ActiveForDate(ctx, q.ProviderID, day)
		if err != nil {
			if errors.Is(err, schedule.ErrScheduleNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve schedule for %s: %w", dayKey(day), err)
		}
		if !sched.AppliesOn(day) {
			continue
		}
		if q.AppointmentType != "" && !sched.AllowsType(q.AppointmentType) {
			continue
		}
		if q.DepartmentID != nil && sched.DepartmentID != nil && *sched.DepartmentID != *q.DepartmentID {
			continue
		}
		if q.FacilityID != nil && sched.FacilityID != nil && *sched.FacilityID != *q.FacilityID {
			continue
		}

		for _, tpl := range sched.DayTemplates {
			times, err := sched.SlotTimes(day, tpl)
			if err != nil {
				return nil, fmt.Errorf("expand template on %s: %w", dayKey(day), err)
			}
			for _, tt := range times {
				if tt[0].Before(q.From) || tt[1].After(q.To) {
					continue
				}
				out = append(out, Slot{
					ProviderID:      q.ProviderID,
					DepartmentID:    sched.DepartmentID,
					FacilityID:      sched.FacilityID,
					StartTime:       tt[0],
					EndTime:         tt[1],
					MaxAppointments: sched.MaxAppointments,
				})
			}
		}
	}
	return out, nil
}

// coveredByBooking rejects slots overlapping a booked window, except the
// window that exactly occupies the slot: that one is accounted for by the
// capacity counter, which is what lets maxAppointments > 1 work.
func coveredByBooking(s Slot, windows []AppointmentWindow) bool {
	for _, w := range windows {
		if !s.Overlaps(w.Start, w.End) {
			continue
		}
		if w.Start.Equal(s.StartTime) && w.End.Equal(s.EndTime) {
			continue
		}
		return true
	}
	return false
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
