package shift

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when the worker already holds an open shift.
	ErrConflict = errors.New("shift: worker already has an open shift")
	// ErrNoActiveShift is returned when a check-out finds no open shift.
	ErrNoActiveShift = errors.New("shift: no active shift")
	// ErrInvalidPin is returned when a supplied manager PIN does not match.
	ErrInvalidPin = errors.New("shift: invalid manager pin")
	// ErrPinLocked is returned by a PinVerifier that refuses further attempts.
	ErrPinLocked = errors.New("shift: manager pin temporarily locked")
	// ErrInvalidSession is returned when the session is incomplete.
	ErrInvalidSession = errors.New("shift: invalid session")
	// ErrInvalidRequest is returned when required request fields are missing.
	ErrInvalidRequest = errors.New("shift: invalid request")
)

// DistanceError reports a check-in refused by the geofence. It is never
// overridable by PIN.
type DistanceError struct {
	DistanceMiles float64
	RadiusMiles   float64
}

func (e *DistanceError) Error() string {
	return fmt.Sprintf("shift: %.2f miles from site exceeds check-in radius of %.2f miles", e.DistanceMiles, e.RadiusMiles)
}

// PinRequiredError reports a check-out outside the geofence with no PIN.
// The shift stays open; the caller may retry with a manager PIN.
type PinRequiredError struct {
	DistanceMiles float64
	RadiusMiles   float64
}

func (e *PinRequiredError) Error() string {
	return fmt.Sprintf("shift: %.2f miles from site exceeds check-out radius of %.2f miles; manager pin required", e.DistanceMiles, e.RadiusMiles)
}

// Kind maps lifecycle errors to a stable label for logs and metrics.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	var distErr *DistanceError
	var pinErr *PinRequiredError
	switch {
	case errors.As(err, &distErr):
		return "distance_exceeded"
	case errors.As(err, &pinErr):
		return "pin_required"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNoActiveShift):
		return "no_active_shift"
	case errors.Is(err, ErrInvalidPin):
		return "invalid_pin"
	case errors.Is(err, ErrPinLocked):
		return "pin_locked"
	case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}
