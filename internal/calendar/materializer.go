// Package calendar combines expanded schedule occurrences with assignments
// and live shift state for calendar views.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

// DefaultHorizonDays bounds the search window for Next.
const DefaultHorizonDays = 92

// Assignments maps a schedule id to the workers assigned to it.
type Assignments map[string][]shift.Session

// Includes reports whether session is assigned to the schedule.
func (a Assignments) Includes(scheduleID string, session shift.Session) bool {
	for _, assigned := range a[scheduleID] {
		if assigned == session {
			return true
		}
	}
	return false
}

// OpenShiftLister lists every shift that has not been checked out.
type OpenShiftLister interface {
	ListOpen(ctx context.Context) ([]shift.Record, error)
}

// Entry is an occurrence annotated with the shifts currently open against it.
type Entry struct {
	recurrence.Occurrence
	Assignees    []shift.Session
	ActiveShifts []shift.Record
}

// Query selects the occurrences visible to a session.
type Query struct {
	Session     shift.Session
	Schedules   []recurrence.Definition
	Assignments Assignments
	RangeStart  recurrence.Date
	RangeEnd    recurrence.Date
}

// Materializer answers the calendar's two questions: what is scheduled in a
// window, and what is the caller's next occurrence.
type Materializer struct {
	expander    *recurrence.Expander
	shifts      OpenShiftLister
	horizonDays int
}

// NewMaterializer wires a Materializer. shifts may be nil, in which case no
// live state is attached. horizonDays <= 0 selects DefaultHorizonDays.
func NewMaterializer(expander *recurrence.Expander, shifts OpenShiftLister, horizonDays int) *Materializer {
	if expander == nil {
		expander = recurrence.NewExpander(nil)
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Materializer{expander: expander, shifts: shifts, horizonDays: horizonDays}
}

// HorizonDays returns the look-ahead used by Next.
func (m *Materializer) HorizonDays() int {
	return m.horizonDays
}

// Occurrences returns the occurrences in range visible to the session.
// Administrators see every occurrence; staff see only those assigned to them.
func (m *Materializer) Occurrences(ctx context.Context, q Query) ([]Entry, error) {
	occurrences, err := m.expander.Expand(q.Schedules, q.RangeStart, q.RangeEnd)
	if err != nil {
		return nil, fmt.Errorf("calendar: expand schedules: %w", err)
	}

	visible := filterVisible(occurrences, q.Session, q.Assignments)

	active, err := m.openShiftsByOccurrence(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(visible))
	for _, occ := range visible {
		entries = append(entries, Entry{
			Occurrence:   occ,
			Assignees:    q.Assignments[occ.ScheduleID],
			ActiveShifts: active[occurrenceKey{scheduleID: occ.ScheduleID, date: occ.Date}],
		})
	}
	return entries, nil
}

// Next returns the assigned occurrence with the smallest start strictly after
// now, searching from today through the configured horizon. The boolean is
// false when no such occurrence exists.
func (m *Materializer) Next(session shift.Session, schedules []recurrence.Definition, assignments Assignments, now time.Time) (recurrence.Occurrence, bool, error) {
	today := recurrence.DateOf(now.In(m.expander.Location()))
	occurrences, err := m.expander.Expand(schedules, today, today.AddDays(m.horizonDays))
	if err != nil {
		return recurrence.Occurrence{}, false, fmt.Errorf("calendar: expand schedules: %w", err)
	}

	var (
		next  recurrence.Occurrence
		found bool
	)
	for _, occ := range occurrences {
		if !assignments.Includes(occ.ScheduleID, session) {
			continue
		}
		if !occ.StartAt.After(now) {
			continue
		}
		if !found || occ.StartAt.Before(next.StartAt) {
			next = occ
			found = true
		}
	}
	return next, found, nil
}

type occurrenceKey struct {
	scheduleID string
	date       recurrence.Date
}

func (m *Materializer) openShiftsByOccurrence(ctx context.Context) (map[occurrenceKey][]shift.Record, error) {
	if m.shifts == nil {
		return nil, nil
	}
	open, err := m.shifts.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("calendar: list open shifts: %w", err)
	}

	loc := m.expander.Location()
	byKey := make(map[occurrenceKey][]shift.Record, len(open))
	for _, rec := range open {
		if rec.ScheduleID == nil {
			continue
		}
		key := occurrenceKey{scheduleID: *rec.ScheduleID, date: recurrence.DateOf(rec.CheckInAt.In(loc))}
		byKey[key] = append(byKey[key], rec)
	}
	return byKey, nil
}

func filterVisible(occurrences []recurrence.Occurrence, session shift.Session, assignments Assignments) []recurrence.Occurrence {
	if session.IsAdmin() {
		return occurrences
	}
	out := make([]recurrence.Occurrence, 0, len(occurrences))
	for _, occ := range occurrences {
		if assignments.Includes(occ.ScheduleID, session) {
			out = append(out, occ)
		}
	}
	return out
}
