package appointment

import "errors"

// Errors surfaced to callers. None of them is retried by the service: each
// means the caller's view is stale and must be refreshed first.
var (
	ErrOutsideAvailability = errors.New("requested window is not currently open")
	ErrSlotUnavailable     = errors.New("slot was taken by another booking")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrForbidden           = errors.New("actor is not allowed to perform this operation")
	ErrInvalidRequest      = errors.New("invalid request")

	// ErrProviderBusy means the per-provider lock could not be acquired in
	// time. Unlike the errors above it says nothing about the slot and the
	// same request may be retried.
	ErrProviderBusy = errors.New("provider schedule is busy, retry later")

	// ErrInconsistentState means stored data violates the no-overlap
	// invariant. It is logged and surfaced, never repaired.
	ErrInconsistentState = errors.New("inconsistent schedule state")
)

// IsNotFound reports whether err refers to a missing appointment or provider.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrProviderNotFound)
}

// Outcome maps err to a short label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrOutsideAvailability):
		return "outside_availability"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case IsNotFound(err):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrProviderBusy):
		return "provider_busy"
	case errors.Is(err, ErrInconsistentState):
		return "inconsistent_state"
	default:
		return "error"
	}
}
