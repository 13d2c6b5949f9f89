package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

var (
	scheduleCounter uint64
	shiftCounter    uint64
)

// referenceTime is a Monday morning.
var referenceTime = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Coordinates around the default client site. Near is well inside the
// default one mile radius, Far is roughly two miles north.
var (
	SiteLocation = geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	NearLocation = geo.Coordinate{Latitude: 40.7138, Longitude: -74.0060}
	FarLocation  = geo.Coordinate{Latitude: 40.7428, Longitude: -74.0060}
)

// StaffSession returns a staff session for workerID.
func StaffSession(workerID string) shift.Session {
	return shift.Session{WorkerID: workerID, WorkerKind: shift.WorkerKindStaff}
}

// AdminSession returns an admin session for workerID.
func AdminSession(workerID string) shift.Session {
	return shift.Session{WorkerID: workerID, WorkerKind: shift.WorkerKindAdmin}
}

// ----------------------------- Site fixtures -----------------------------

// NewSite returns the default client site for clientID, located at SiteLocation.
func NewSite(clientID string) application.Site {
	return application.Site{
		ClientID:  clientID,
		Name:      fmt.Sprintf("Site of %s", clientID),
		Location:  SiteLocation,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// --------------------------- Schedule fixtures ---------------------------

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*application.Schedule)

// NewSchedule returns an active weekly Monday 08:00-12:00 schedule starting on
// the reference date, with optional overrides.
func NewSchedule(opts ...ScheduleOption) application.Schedule {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	monday := recurrence.Monday
	schedule := application.Schedule{
		ID:             fmt.Sprintf("schedule-%03d", idx),
		ClientID:       "client-001",
		Title:          fmt.Sprintf("Visit %03d", idx),
		RecurrenceType: recurrence.KindWeekly,
		StartDate:      recurrence.DateOf(referenceTime),
		DayOfWeek:      &monday,
		StartTime:      recurrence.TimeOfDay{Hour: 8},
		EndTime:        recurrence.TimeOfDay{Hour: 12},
		Status:         recurrence.StatusActive,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&schedule)
	}
	return schedule
}

// WithScheduleID overrides the generated schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(s *application.Schedule) {
		s.ID = id
	}
}

// WithScheduleClient overrides the client the schedule belongs to.
func WithScheduleClient(clientID string) ScheduleOption {
	return func(s *application.Schedule) {
		s.ClientID = clientID
	}
}

// WithRecurrence sets the recurrence kind and weekday. A one-time or monthly
// schedule ignores day.
func WithRecurrence(kind recurrence.Kind, day recurrence.DayOfWeek) ScheduleOption {
	return func(s *application.Schedule) {
		s.RecurrenceType = kind
		if kind == recurrence.KindWeekly || kind == recurrence.KindBiWeekly {
			s.DayOfWeek = &day
		} else {
			s.DayOfWeek = nil
		}
	}
}

// WithStartDate overrides the anchor date.
func WithStartDate(date recurrence.Date) ScheduleOption {
	return func(s *application.Schedule) {
		s.StartDate = date
	}
}

// WithScheduleStatus overrides the lifecycle status.
func WithScheduleStatus(status recurrence.Status) ScheduleOption {
	return func(s *application.Schedule) {
		s.Status = status
	}
}

// WithAssignees replaces the schedule assignees.
func WithAssignees(sessions ...shift.Session) ScheduleOption {
	return func(s *application.Schedule) {
		s.Assignees = append([]shift.Session(nil), sessions...)
	}
}

// ScheduleInput converts a schedule fixture into the create/update input form.
func ScheduleInput(schedule application.Schedule) application.ScheduleInput {
	input := application.ScheduleInput{
		ClientID:       schedule.ClientID,
		Title:          schedule.Title,
		RecurrenceType: string(schedule.RecurrenceType),
		StartDate:      schedule.StartDate.String(),
		StartTime:      schedule.StartTime.String(),
		EndTime:        schedule.EndTime.String(),
	}
	if schedule.DayOfWeek != nil {
		day := int(*schedule.DayOfWeek)
		input.DayOfWeek = &day
	}
	for _, assignee := range schedule.Assignees {
		input.Assignees = append(input.Assignees, application.Assignee{
			WorkerID:   assignee.WorkerID,
			WorkerKind: string(assignee.WorkerKind),
		})
	}
	return input
}

// ----------------------------- Shift fixtures ----------------------------

// NewOpenShift returns an open shift for session at clientID, checked in at
// the reference time from NearLocation.
func NewOpenShift(session shift.Session, clientID string) shift.Record {
	idx := atomic.AddUint64(&shiftCounter, 1)
	return shift.Record{
		ID:                   fmt.Sprintf("shift-%03d", idx),
		WorkerID:             session.WorkerID,
		WorkerKind:           session.WorkerKind,
		ClientID:             clientID,
		CheckInAt:            referenceTime,
		CheckInLocation:      NearLocation,
		CheckInDistanceMiles: geo.Distance(NearLocation, SiteLocation),
	}
}
