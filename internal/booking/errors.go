package booking

import (
	"errors"
	"fmt"

	"github.com/clinicore/scheduling-engine/internal/availability"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ValidationError reports malformed or out-of-range input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports that the requested slot is unavailable. It carries
// alternative open slots near the requested time so the caller can decide
// whether to accept one; the engine never substitutes silently.
type ConflictError struct {
	Message      string
	Alternatives []availability.Slot
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ImmutableStateError reports a mutation attempted on a terminal appointment.
type ImmutableStateError struct {
	Status Status
}

func (e *ImmutableStateError) Error() string {
	return fmt.Sprintf("appointment is %s and can no longer be modified", e.Status)
}

// InvalidTransitionError reports a state machine guard failure.
type InvalidTransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot move appointment from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot move appointment from %s to %s", e.From, e.To)
}

// PolicyViolationError reports a business policy rejection, e.g. the
// cancellation window has closed.
type PolicyViolationError struct {
	Message string
}

func (e *PolicyViolationError) Error() string {
	return e.Message
}

// DependencyError reports an unreachable collaborator. Booking degrades on
// it rather than failing.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency failure in %s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
