package application

import (
	"time"

	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

// Assignee identifies a worker a schedule is assigned to.
type Assignee struct {
	WorkerID   string
	WorkerKind string
}

// ScheduleInput captures caller provided schedule definition fields.
type ScheduleInput struct {
	ClientID       string
	Title          string
	RecurrenceType string
	StartDate      string
	DayOfWeek      *int
	StartTime      string
	EndTime        string
	Assignees      []Assignee
}

// Schedule is a validated schedule definition with its assignments.
type Schedule struct {
	ID             string
	ClientID       string
	Title          string
	RecurrenceType recurrence.Kind
	StartDate      recurrence.Date
	DayOfWeek      *recurrence.DayOfWeek
	StartTime      recurrence.TimeOfDay
	EndTime        recurrence.TimeOfDay
	Status         recurrence.Status
	Assignees      []shift.Session
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Definition returns the expander view of the schedule.
func (s Schedule) Definition() recurrence.Definition {
	def := recurrence.Definition{
		ID:        s.ID,
		ClientID:  s.ClientID,
		Kind:      s.RecurrenceType,
		StartDate: s.StartDate,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Status:    s.Status,
	}
	if s.DayOfWeek != nil {
		day := *s.DayOfWeek
		def.DayOfWeek = &day
	}
	return def
}

// AssignedTo reports whether session is one of the schedule's assignees.
func (s Schedule) AssignedTo(session shift.Session) bool {
	for _, assignee := range s.Assignees {
		if assignee == session {
			return true
		}
	}
	return false
}

// CreateScheduleParams wraps the data required to create a schedule.
type CreateScheduleParams struct {
	Session shift.Session
	Input   ScheduleInput
}

// UpdateScheduleParams wraps the data required to update an existing schedule.
type UpdateScheduleParams struct {
	Session    shift.Session
	ScheduleID string
	Input      ScheduleInput
}

// SetScheduleStatusParams wraps the data required to change a schedule status.
type SetScheduleStatusParams struct {
	Session    shift.Session
	ScheduleID string
	Status     string
}

// ListSchedulesParams wraps the data required to list schedules. Staff
// sessions only ever see schedules assigned to them.
type ListSchedulesParams struct {
	Session  shift.Session
	ClientID string
	Statuses []string
}

// ScheduleRepositoryFilter narrows queries issued to the schedule repository.
type ScheduleRepositoryFilter struct {
	ClientID string
	Assignee *shift.Session
	Statuses []recurrence.Status
}

// SiteInput captures caller provided client site fields.
type SiteInput struct {
	ClientID  string
	Name      string
	Latitude  float64
	Longitude float64
}

// Site is the registered location of a client.
type Site struct {
	ClientID  string
	Name      string
	Location  geo.Coordinate
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertSiteParams wraps the data required to register or move a client site.
type UpsertSiteParams struct {
	Session shift.Session
	Input   SiteInput
}

// SetPinParams wraps the data required to replace the organisation PIN.
type SetPinParams struct {
	Session shift.Session
	Pin     string
}

// PinRecord is the stored organisation PIN hash.
type PinRecord struct {
	Hash      string
	UpdatedBy string
	UpdatedAt time.Time
}

// PinPolicy bounds manager PIN attempts per session.
type PinPolicy struct {
	MaxAttempts   int
	LockoutWindow time.Duration
}

// OccurrencesParams wraps a calendar range query. Both bounds are inclusive.
type OccurrencesParams struct {
	Session    shift.Session
	RangeStart string
	RangeEnd   string
}
