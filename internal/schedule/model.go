package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotTemplate describes one bookable block of a working day, for example
// 09:00-12:00 cut into 30 minute slots.
type SlotTemplate struct {
	Start       string `json:"start"` // "HH:MM"
	End         string `json:"end"`   // "HH:MM"
	SlotMinutes int    `json:"slot_minutes"`
}

// ProviderSchedule is a recurring weekly availability rule for one provider.
// At most one schedule applies to a provider+date; overlaps are resolved by
// highest priority, then most recent creation.
type ProviderSchedule struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	DepartmentID    *uuid.UUID
	FacilityID      *uuid.UUID
	EffectiveFrom   time.Time
	EffectiveUntil  time.Time
	DaysOfWeek      []time.Weekday
	DayTemplates    []SlotTemplate
	MaxAppointments int // capacity per generated slot
	BufferMinutes   int // gap between consecutive slots
	AllowedTypes    []string
	Priority        int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DateOverride marks a single date as closed for a provider, regardless of
// what the recurring schedule says.
type DateOverride struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Date       time.Time
	Closed     bool
	Reason     *string
	CreatedAt  time.Time
}

// AppliesOn reports whether this schedule generates slots on the given date.
func (s *ProviderSchedule) AppliesOn(date time.Time) bool {
	if !s.Active {
		return false
	}

	day := truncateToDay(date)
	if day.Before(truncateToDay(s.EffectiveFrom)) || day.After(truncateToDay(s.EffectiveUntil)) {
		return false
	}

	for _, wd := range s.DaysOfWeek {
		if wd == date.Weekday() {
			return true
		}
	}
	return false
}

// AllowsType reports whether the schedule accepts the given appointment type.
// An empty allow-list accepts everything.
func (s *ProviderSchedule) AllowsType(appointmentType string) bool {
	if len(s.AllowedTypes) == 0 {
		return true
	}
	for _, t := range s.AllowedTypes {
		if t == appointmentType {
			return true
		}
	}
	return false
}

// SlotTimes expands one template into concrete start/end pairs on a date,
// honoring the schedule's buffer between slots.
func (s *ProviderSchedule) SlotTimes(date time.Time, tpl SlotTemplate) ([][2]time.Time, error) {
	start, err := clockOn(date, tpl.Start)
	if err != nil {
		return nil, fmt.Errorf("template start: %w", err)
	}
	end, err := clockOn(date, tpl.End)
	if err != nil {
		return nil, fmt.Errorf("template end: %w", err)
	}
	if tpl.SlotMinutes <= 0 {
		return nil, fmt.Errorf("template slot_minutes must be positive, got %d", tpl.SlotMinutes)
	}

	slotLen := time.Duration(tpl.SlotMinutes) * time.Minute
	buffer := time.Duration(s.BufferMinutes) * time.Minute

	var out [][2]time.Time
	for cur := start; !cur.Add(slotLen).After(end); cur = cur.Add(slotLen + buffer) {
		out = append(out, [2]time.Time{cur, cur.Add(slotLen)})
	}
	return out, nil
}

// clockOn parses "HH:MM" onto the given date in the date's location.
func clockOn(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
