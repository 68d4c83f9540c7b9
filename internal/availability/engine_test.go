package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-engine/internal/schedule"
)

type stubSchedules struct {
	sched     *schedule.ProviderSchedule
	overrides []schedule.DateOverride
}

func (s *stubSchedules) Create(_ context.Context, _ *schedule.ProviderSchedule) error { return nil }

func (s *stubSchedules) GetByID(_ context.Context, _ uuid.UUID) (*schedule.ProviderSchedule, error) {
	if s.sched == nil {
		return nil, schedule.ErrScheduleNotFound
	}
	return s.sched, nil
}

func (s *stubSchedules) ListByProvider(_ context.Context, _ uuid.UUID) ([]schedule.ProviderSchedule, error) {
	if s.sched == nil {
		return nil, nil
	}
	return []schedule.ProviderSchedule{*s.sched}, nil
}

func (s *stubSchedules) ActiveForDate(_ context.Context, _ uuid.UUID, _ time.Time) (*schedule.ProviderSchedule, error) {
	if s.sched == nil {
		return nil, schedule.ErrScheduleNotFound
	}
	return s.sched, nil
}

func (s *stubSchedules) CreateOverride(_ context.Context, _ *schedule.DateOverride) error { return nil }

func (s *stubSchedules) OverridesInRange(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]schedule.DateOverride, error) {
	return s.overrides, nil
}

type stubSlots struct {
	usage map[time.Time]int
}

func (s *stubSlots) Materialize(_ context.Context, slot *Slot) error {
	slot.ID = uuid.New()
	return nil
}

func (s *stubSlots) Reserve(_ context.Context, _ uuid.UUID) (bool, error) { return true, nil }
func (s *stubSlots) Release(_ context.Context, _ uuid.UUID) error         { return nil }

func (s *stubSlots) UsageIn(_ context.Context, _ uuid.UUID, _, _ time.Time) (map[time.Time]int, error) {
	return s.usage, nil
}

type stubBookings struct {
	windows []AppointmentWindow
}

func (s *stubBookings) ActiveWindows(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]AppointmentWindow, error) {
	return s.windows, nil
}

// 2026-03-10 is a Tuesday.
var (
	testProvider = uuid.New()
	tuesday      = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

func weekdaySchedule(allDays bool) *schedule.ProviderSchedule {
	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	if allDays {
		days = append(days, time.Saturday, time.Sunday)
	}
	return &schedule.ProviderSchedule{
		ID:             uuid.New(),
		ProviderID:     testProvider,
		EffectiveFrom:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EffectiveUntil: time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		DaysOfWeek:     days,
		DayTemplates: []schedule.SlotTemplate{
			{Start: "09:00", End: "11:00", SlotMinutes: 30},
		},
		MaxAppointments: 1,
		AllowedTypes:    []string{"consultation"},
		Active:          true,
	}
}

func setupEngine(sched *schedule.ProviderSchedule) (*Engine, *stubSchedules, *stubSlots, *stubBookings) {
	schedules := &stubSchedules{sched: sched}
	slots := &stubSlots{}
	bookings := &stubBookings{}
	return NewEngine(schedules, slots, bookings), schedules, slots, bookings
}

func oneDayQuery(day time.Time) Query {
	return Query{
		ProviderID: testProvider,
		From:       day,
		To:         day.AddDate(0, 0, 1),
	}
}

func TestSearch_ExpandsScheduleIntoSlots(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))

	slots, err := engine.Search(context.Background(), oneDayQuery(tuesday))
	require.NoError(t, err)
	require.Len(t, slots, 4)

	wantStarts := []string{"09:00", "09:30", "10:00", "10:30"}
	for i, s := range slots {
		assert.Equal(t, wantStarts[i], s.StartTime.Format("15:04"))
		assert.Equal(t, 30*time.Minute, s.EndTime.Sub(s.StartTime))
		assert.Equal(t, 1, s.MaxAppointments)
		assert.Zero(t, s.CurrentAppointments)
	}
}

func TestSearch_IsRepeatable(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))
	q := oneDayQuery(tuesday)

	first, err := engine.Search(context.Background(), q)
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second, "searching must not consume availability")
}

func TestSearch_WeekendHandling(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(true))
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	q := Query{
		ProviderID: testProvider,
		From:       monday,
		To:         monday.AddDate(0, 0, 7),
	}

	slots, err := engine.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, slots, 20, "weekdays only by default")

	q.IncludeWeekends = true
	slots, err = engine.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, slots, 28)
}

func TestSearch_ClosedOverrideBlocksDay(t *testing.T) {
	engine, schedules, _, _ := setupEngine(weekdaySchedule(false))
	schedules.overrides = []schedule.DateOverride{
		{ProviderID: testProvider, Date: tuesday, Closed: true},
	}

	slots, err := engine.Search(context.Background(), oneDayQuery(tuesday))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSearch_SubtractsUsageAndBookedWindows(t *testing.T) {
	engine, _, slots, bookings := setupEngine(weekdaySchedule(false))

	// 09:00 is at capacity, 09:30 and 10:00 are crossed by a booked window,
	// 10:30 is exactly occupied by a booking and stays visible through its
	// capacity count.
	slots.usage = map[time.Time]int{
		tuesday.Add(9 * time.Hour): 1,
	}
	bookings.windows = []AppointmentWindow{
		{Start: tuesday.Add(9*time.Hour + 45*time.Minute), End: tuesday.Add(10*time.Hour + 15*time.Minute)},
		{Start: tuesday.Add(10*time.Hour + 30*time.Minute), End: tuesday.Add(11 * time.Hour)},
	}

	open, err := engine.Search(context.Background(), oneDayQuery(tuesday))
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "10:30", open[0].StartTime.Format("15:04"))
}

func TestSearch_TypeFilter(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))

	q := oneDayQuery(tuesday)
	q.AppointmentType = "surgery"
	open, err := engine.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, open)

	q.AppointmentType = "consultation"
	open, err = engine.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, open, 4)
}

func TestSearch_TruncatesToMaxResults(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))
	q := oneDayQuery(tuesday)
	q.MaxResults = 2

	open, err := engine.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "09:00", open[0].StartTime.Format("15:04"))
	assert.Equal(t, "09:30", open[1].StartTime.Format("15:04"))
}

func TestSearch_EmptyRangeRejected(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))

	_, err := engine.Search(context.Background(), Query{
		ProviderID: testProvider,
		From:       tuesday,
		To:         tuesday,
	})
	assert.Error(t, err)
}

func TestSearch_NoScheduleMeansNoSlots(t *testing.T) {
	engine, _, _, _ := setupEngine(nil)

	open, err := engine.Search(context.Background(), oneDayQuery(tuesday))
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSlotFor_FindsCoveringSlot(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))
	start := tuesday.Add(9*time.Hour + 30*time.Minute)

	slot, err := engine.SlotFor(context.Background(), testProvider, start, 30, "consultation")
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, start, slot.StartTime)
}

func TestSlotFor_NoSlotCoversMisalignedRequest(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))
	start := tuesday.Add(9*time.Hour + 40*time.Minute)

	slot, err := engine.SlotFor(context.Background(), testProvider, start, 30, "consultation")
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestSlotFor_FullSlotSkipped(t *testing.T) {
	engine, _, slots, _ := setupEngine(weekdaySchedule(false))
	start := tuesday.Add(9*time.Hour + 30*time.Minute)
	slots.usage = map[time.Time]int{start: 1}

	slot, err := engine.SlotFor(context.Background(), testProvider, start, 30, "consultation")
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestAlternatives_RespectsLimit(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))
	around := tuesday.Add(10 * time.Hour)

	alts, err := engine.Alternatives(context.Background(), testProvider, around, 30, "consultation", 2)
	require.NoError(t, err)
	require.Len(t, alts, 2)
	assert.Equal(t, "09:00", alts[0].StartTime.Format("15:04"))
	assert.Equal(t, "09:30", alts[1].StartTime.Format("15:04"))
}

func TestAlternatives_FiltersTooShortSlots(t *testing.T) {
	engine, _, _, _ := setupEngine(weekdaySchedule(false))
	around := tuesday.Add(10 * time.Hour)

	alts, err := engine.Alternatives(context.Background(), testProvider, around, 45, "consultation", 5)
	require.NoError(t, err)
	assert.Empty(t, alts)
}

func TestSlotHelpers(t *testing.T) {
	s := Slot{
		StartTime:           tuesday.Add(9 * time.Hour),
		EndTime:             tuesday.Add(9*time.Hour + 30*time.Minute),
		MaxAppointments:     2,
		CurrentAppointments: 1,
	}

	assert.True(t, s.Available())
	s.CurrentAppointments = 2
	assert.False(t, s.Available())

	assert.True(t, s.Overlaps(tuesday.Add(9*time.Hour+15*time.Minute), tuesday.Add(10*time.Hour)))
	assert.False(t, s.Overlaps(s.EndTime, s.EndTime.Add(time.Hour)), "half-open intervals do not overlap at the boundary")
}
