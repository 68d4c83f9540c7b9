package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchedule() *ProviderSchedule {
	return &ProviderSchedule{
		EffectiveFrom:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EffectiveUntil: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		DaysOfWeek:     []time.Weekday{time.Monday, time.Wednesday},
		DayTemplates: []SlotTemplate{
			{Start: "09:00", End: "12:00", SlotMinutes: 30},
		},
		MaxAppointments: 1,
		Active:          true,
	}
}

func TestAppliesOn(t *testing.T) {
	s := testSchedule()

	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	wednesday := monday.AddDate(0, 0, 2)

	assert.True(t, s.AppliesOn(monday))
	assert.False(t, s.AppliesOn(tuesday), "weekday not in the schedule")
	assert.True(t, s.AppliesOn(wednesday))

	assert.False(t, s.AppliesOn(time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)), "before effective range")
	assert.False(t, s.AppliesOn(time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)), "after effective range")

	// Boundary dates are inclusive. 2026-03-02 and 2026-03-30 are Mondays,
	// and so are the range edges shifted onto schedule days.
	assert.True(t, s.AppliesOn(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, s.AppliesOn(time.Date(2026, 3, 30, 23, 0, 0, 0, time.UTC)), "time of day is ignored")

	s.Active = false
	assert.False(t, s.AppliesOn(monday), "inactive schedules never apply")
}

func TestAllowsType(t *testing.T) {
	s := testSchedule()

	assert.True(t, s.AllowsType("consultation"), "empty allow-list accepts everything")

	s.AllowedTypes = []string{"consultation", "follow_up"}
	assert.True(t, s.AllowsType("consultation"))
	assert.True(t, s.AllowsType("follow_up"))
	assert.False(t, s.AllowsType("surgery"))
}

func TestSlotTimes(t *testing.T) {
	s := testSchedule()
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	times, err := s.SlotTimes(date, s.DayTemplates[0])
	require.NoError(t, err)
	require.Len(t, times, 6, "09:00-12:00 in 30 minute slots")

	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), times[0][0])
	assert.Equal(t, time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC), times[0][1])
	assert.Equal(t, time.Date(2026, 3, 9, 11, 30, 0, 0, time.UTC), times[5][0])
	assert.Equal(t, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), times[5][1])
}

func TestSlotTimes_Buffer(t *testing.T) {
	s := testSchedule()
	s.BufferMinutes = 10
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	times, err := s.SlotTimes(date, s.DayTemplates[0])
	require.NoError(t, err)

	// 09:00, 09:40, 10:20, 11:00; the next start at 11:40 would run past
	// the template end.
	require.Len(t, times, 4)
	assert.Equal(t, "09:40", times[1][0].Format("15:04"))
	assert.Equal(t, "11:00", times[3][0].Format("15:04"))
	assert.Equal(t, "11:30", times[3][1].Format("15:04"))
}

func TestSlotTimes_Errors(t *testing.T) {
	s := testSchedule()
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	_, err := s.SlotTimes(date, SlotTemplate{Start: "nine", End: "12:00", SlotMinutes: 30})
	assert.Error(t, err)

	_, err = s.SlotTimes(date, SlotTemplate{Start: "09:00", End: "12:00", SlotMinutes: 0})
	assert.Error(t, err)
}

func TestSlotTimes_SlotLongerThanTemplate(t *testing.T) {
	s := testSchedule()
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	times, err := s.SlotTimes(date, SlotTemplate{Start: "09:00", End: "09:20", SlotMinutes: 30})
	require.NoError(t, err)
	assert.Empty(t, times)
}
