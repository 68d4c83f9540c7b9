package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled,
}

func TestCanTransition_ClosedTable(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusScheduled, StatusConfirmed}:     true,
		{StatusScheduled, StatusCheckedIn}:     true,
		{StatusScheduled, StatusCancelled}:     true,
		{StatusScheduled, StatusNoShow}:        true,
		{StatusScheduled, StatusRescheduled}:   true,
		{StatusConfirmed, StatusCheckedIn}:     true,
		{StatusConfirmed, StatusCancelled}:     true,
		{StatusConfirmed, StatusNoShow}:        true,
		{StatusConfirmed, StatusRescheduled}:   true,
		{StatusCheckedIn, StatusInProgress}:    true,
		{StatusCheckedIn, StatusCompleted}:     true,
		{StatusCheckedIn, StatusCancelled}:     true,
		{StatusInProgress, StatusCompleted}:    true,
		{StatusInProgress, StatusCancelled}:    true,
		{StatusRescheduled, StatusConfirmed}:   true,
		{StatusRescheduled, StatusCancelled}:   true,
		{StatusRescheduled, StatusRescheduled}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			got := CanTransition(from, to)
			want := allowed[[2]Status{from, to}]
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range allStatuses {
		switch s {
		case StatusCompleted, StatusCancelled, StatusNoShow:
			assert.True(t, s.Terminal(), "%s should be terminal", s)
			assert.False(t, s.HoldsCapacity(), "%s should not hold capacity", s)
		default:
			assert.False(t, s.Terminal(), "%s should not be terminal", s)
			assert.True(t, s.HoldsCapacity(), "%s should hold capacity", s)
		}
	}
}

func TestGuardTransition_TerminalIsImmutable(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		err := guardTransition(from, StatusConfirmed)
		var immutable *ImmutableStateError
		assert.ErrorAs(t, err, &immutable, "from %s", from)
	}
}

func TestGuardTransition_DisallowedPair(t *testing.T) {
	err := guardTransition(StatusScheduled, StatusCompleted)
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusScheduled, invalid.From)
	assert.Equal(t, StatusCompleted, invalid.To)
}

func TestGuardTransition_AllowedPair(t *testing.T) {
	assert.NoError(t, guardTransition(StatusScheduled, StatusConfirmed))
	assert.NoError(t, guardTransition(StatusRescheduled, StatusRescheduled))
}

func TestNonTerminalStatuses(t *testing.T) {
	got := NonTerminalStatuses()
	assert.Len(t, got, 5)
	for _, s := range got {
		assert.False(t, Status(s).Terminal())
	}
}
