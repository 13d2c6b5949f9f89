package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind identifies how a schedule definition repeats.
type Kind string

const (
	// KindOneTime yields a single occurrence on the start date.
	KindOneTime Kind = "one_time"
	// KindWeekly repeats every 7 days.
	KindWeekly Kind = "weekly"
	// KindBiWeekly repeats every 14 days.
	KindBiWeekly Kind = "bi_weekly"
	// KindMonthly repeats every calendar month.
	KindMonthly Kind = "monthly"
)

// ParseKind validates a textual recurrence type.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.TrimSpace(value))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRecurrence, value)
	}
	return kind, nil
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOneTime, KindWeekly, KindBiWeekly, KindMonthly:
		return true
	default:
		return false
	}
}

// Recurring reports whether k produces more than one occurrence.
func (k Kind) Recurring() bool {
	return k == KindWeekly || k == KindBiWeekly || k == KindMonthly
}

// Status is the lifecycle status of a schedule definition.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// ParseStatus validates a textual status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.TrimSpace(value))
	switch status {
	case StatusActive, StatusPaused, StatusEnded:
		return status, nil
	default:
		return "", fmt.Errorf("recurrence: unknown status %q", value)
	}
}

// Definition is a schedule definition as consumed by the expander.
type Definition struct {
	ID        string
	ClientID  string
	Kind      Kind
	StartDate Date
	// DayOfWeek aligns the first occurrence. Weekly steps keep the weekday;
	// monthly steps keep the aligned day of month instead.
	DayOfWeek *DayOfWeek
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Status    Status
}

// Occurrence is a concrete dated instance of a definition.
type Occurrence struct {
	ScheduleID string
	ClientID   string
	Date       Date
	StartAt    time.Time
	EndAt      time.Time
	Schedule   Definition
}

var (
	// ErrUnknownRecurrence indicates the definition kind is not supported.
	ErrUnknownRecurrence = errors.New("recurrence: unknown recurrence type")
	// ErrInvalidWindow indicates the range end precedes the range start.
	ErrInvalidWindow = errors.New("recurrence: range end must not precede range start")
	// ErrInvalidTimeRange indicates end_time does not follow start_time.
	ErrInvalidTimeRange = errors.New("recurrence: end_time must be after start_time")
	// ErrNoProgress indicates an advance step failed to move the cursor forward.
	ErrNoProgress = errors.New("recurrence: cursor did not advance")
)

// Expander turns schedule definitions into dated occurrences.
type Expander struct {
	location *time.Location
}

// NewExpander constructs an Expander that builds absolute times in loc.
// If loc is nil, UTC is used.
func NewExpander(loc *time.Location) *Expander {
	if loc == nil {
		loc = time.UTC
	}
	return &Expander{location: loc}
}

// Location returns the zone occurrences are materialised in.
func (e *Expander) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Expand returns every occurrence of the active definitions whose date falls
// within [rangeStart, rangeEnd], both bounds inclusive.
//
// Results are ordered by date, then schedule id, then start time. The
// function is pure: identical inputs always produce identical output.
func (e *Expander) Expand(defs []Definition, rangeStart, rangeEnd Date) ([]Occurrence, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, ErrInvalidWindow
	}

	occurrences := make([]Occurrence, 0)
	for _, def := range defs {
		if def.Status != StatusActive {
			continue
		}
		var err error
		occurrences, err = e.expandDefinition(def, rangeStart, rangeEnd, occurrences)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", def.ID, err)
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		a, b := occurrences[i], occurrences[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		if a.ScheduleID != b.ScheduleID {
			return a.ScheduleID < b.ScheduleID
		}
		return a.StartAt.Before(b.StartAt)
	})

	return occurrences, nil
}

func (e *Expander) expandDefinition(def Definition, rangeStart, rangeEnd Date, out []Occurrence) ([]Occurrence, error) {
	if !def.EndTime.After(def.StartTime) {
		return nil, ErrInvalidTimeRange
	}

	if def.Kind == KindOneTime {
		if !def.StartDate.Before(rangeStart) && !def.StartDate.After(rangeEnd) {
			out = append(out, e.occurrenceOn(def, def.StartDate))
		}
		return out, nil
	}
	if !def.Kind.Recurring() {
		return nil, ErrUnknownRecurrence
	}

	cursor := def.StartDate
	if def.DayOfWeek != nil {
		if !def.DayOfWeek.Valid() {
			return nil, ErrInvalidDayOfWeek
		}
		cursor = alignForward(cursor, *def.DayOfWeek)
	}

	// Monthly steps are computed from the aligned anchor so that clamping a
	// short month does not erode the day of month for later months.
	anchor := cursor
	step := 0
	if cursor.Before(rangeStart) {
		cursor, step = fastForward(def.Kind, anchor, rangeStart)
	}

	for !cursor.After(rangeEnd) {
		if !cursor.Before(rangeStart) {
			out = append(out, e.occurrenceOn(def, cursor))
		}

		step++
		next := advance(def.Kind, anchor, cursor, step)
		if !next.After(cursor) {
			return nil, ErrNoProgress
		}
		cursor = next
	}

	return out, nil
}

func (e *Expander) occurrenceOn(def Definition, date Date) Occurrence {
	loc := e.Location()
	return Occurrence{
		ScheduleID: def.ID,
		ClientID:   def.ClientID,
		Date:       date,
		StartAt:    date.At(def.StartTime, loc),
		EndAt:      date.At(def.EndTime, loc),
		Schedule:   def,
	}
}

func alignForward(date Date, target DayOfWeek) Date {
	offset := (int(target) - int(date.Weekday()) + 7) % 7
	return date.AddDays(offset)
}

func stepDays(kind Kind) int {
	switch kind {
	case KindWeekly:
		return 7
	case KindBiWeekly:
		return 14
	default:
		return 0
	}
}

// advance returns the cursor for the given step index counted from anchor.
func advance(kind Kind, anchor, cursor Date, step int) Date {
	if kind == KindMonthly {
		return anchor.AddMonthsClamped(step)
	}
	return cursor.AddDays(stepDays(kind))
}

// fastForward skips whole steps that end before rangeStart and returns the
// first cursor that could still fall inside the window with its step index.
func fastForward(kind Kind, anchor, rangeStart Date) (Date, int) {
	if kind == KindMonthly {
		months := (rangeStart.Year-anchor.Year)*12 + int(rangeStart.Month) - int(anchor.Month) - 1
		if months <= 0 {
			return anchor, 0
		}
		return anchor.AddMonthsClamped(months), months
	}

	days := stepDays(kind)
	skip := anchor.DaysUntil(rangeStart) / days
	return anchor.AddDays(skip * days), skip
}
