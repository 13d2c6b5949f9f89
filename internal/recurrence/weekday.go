package recurrence

import (
	"errors"
	"time"
)

// DayOfWeek is a Monday-based weekday index: Monday=0 through Sunday=6.
type DayOfWeek int

const (
	Monday DayOfWeek = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// ErrInvalidDayOfWeek indicates a weekday index outside 0..6.
var ErrInvalidDayOfWeek = errors.New("recurrence: day_of_week must be between 0 (Monday) and 6 (Sunday)")

// FromWeekday converts Go's Sunday-based weekday into the Monday-based index.
// All domain weekday conversions go through this function.
func FromWeekday(w time.Weekday) DayOfWeek {
	return DayOfWeek((int(w) + 6) % 7)
}

// Weekday converts the Monday-based index back to Go's Sunday-based weekday.
func (d DayOfWeek) Weekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// Valid reports whether d is within 0..6.
func (d DayOfWeek) Valid() bool {
	return d >= Monday && d <= Sunday
}

// String returns the English weekday name.
func (d DayOfWeek) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return d.Weekday().String()
}
