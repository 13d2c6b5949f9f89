package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/fieldops/internal/calendar"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

// MaxCalendarWindowDays bounds the span of a single occurrences query.
const MaxCalendarWindowDays = 366

// CalendarService answers calendar queries from stored schedule definitions.
type CalendarService struct {
	schedules    ScheduleRepository
	materializer *calendar.Materializer
	now          func() time.Time
	logger       *slog.Logger
}

// NewCalendarService constructs a calendar service.
func NewCalendarService(schedules ScheduleRepository, materializer *calendar.Materializer, now func() time.Time, logger *slog.Logger) *CalendarService {
	if materializer == nil {
		materializer = calendar.NewMaterializer(nil, nil, 0)
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarService{schedules: schedules, materializer: materializer, now: now, logger: defaultLogger(logger)}
}

// Occurrences lists the occurrences in [RangeStart, RangeEnd] visible to the session.
func (s *CalendarService) Occurrences(ctx context.Context, params OccurrencesParams) (entries []calendar.Entry, err error) {
	if s == nil {
		return nil, fmt.Errorf("CalendarService is nil")
	}
	if err := params.Session.Validate(); err != nil {
		return nil, ErrUnauthorized
	}

	logger := serviceLogger(ctx, s.logger, "CalendarService", "Occurrences",
		"worker_id", params.Session.WorkerID,
		"range_start", params.RangeStart,
		"range_end", params.RangeEnd,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list occurrences", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "occurrences listed", "count", len(entries))
	}()

	start, end, vErr := parseWindow(params.RangeStart, params.RangeEnd)
	if vErr.HasErrors() {
		return nil, vErr
	}

	schedules, assignments, err := s.loadVisible(ctx, params.Session)
	if err != nil {
		return nil, err
	}

	return s.materializer.Occurrences(ctx, calendar.Query{
		Session:     params.Session,
		Schedules:   schedules,
		Assignments: assignments,
		RangeStart:  start,
		RangeEnd:    end,
	})
}

// NextOccurrence returns the session's next assigned occurrence that starts
// after now. The boolean is false when none falls inside the horizon.
func (s *CalendarService) NextOccurrence(ctx context.Context, session shift.Session) (recurrence.Occurrence, bool, error) {
	if s == nil {
		return recurrence.Occurrence{}, false, fmt.Errorf("CalendarService is nil")
	}
	if err := session.Validate(); err != nil {
		return recurrence.Occurrence{}, false, ErrUnauthorized
	}

	schedules, assignments, err := s.loadAssigned(ctx, session)
	if err != nil {
		return recurrence.Occurrence{}, false, err
	}
	return s.materializer.Next(session, schedules, assignments, s.now())
}

// loadVisible returns every active definition for administrators and only
// assigned ones for staff.
func (s *CalendarService) loadVisible(ctx context.Context, session shift.Session) ([]recurrence.Definition, calendar.Assignments, error) {
	if session.IsAdmin() {
		return s.load(ctx, ScheduleRepositoryFilter{Statuses: []recurrence.Status{recurrence.StatusActive}})
	}
	return s.loadAssigned(ctx, session)
}

func (s *CalendarService) loadAssigned(ctx context.Context, session shift.Session) ([]recurrence.Definition, calendar.Assignments, error) {
	return s.load(ctx, ScheduleRepositoryFilter{
		Assignee: &session,
		Statuses: []recurrence.Status{recurrence.StatusActive},
	})
}

func (s *CalendarService) load(ctx context.Context, filter ScheduleRepositoryFilter) ([]recurrence.Definition, calendar.Assignments, error) {
	if s.schedules == nil {
		return nil, calendar.Assignments{}, nil
	}
	schedules, err := s.schedules.ListSchedules(ctx, filter)
	if err != nil {
		return nil, nil, mapScheduleRepoError(err)
	}

	defs := make([]recurrence.Definition, 0, len(schedules))
	assignments := make(calendar.Assignments, len(schedules))
	for _, schedule := range schedules {
		defs = append(defs, schedule.Definition())
		assignments[schedule.ID] = schedule.Assignees
	}
	return defs, assignments, nil
}

func parseWindow(rawStart, rawEnd string) (recurrence.Date, recurrence.Date, *ValidationError) {
	vErr := &ValidationError{}
	start, err := recurrence.ParseDate(rawStart)
	if err != nil {
		vErr.add("start", "start must be a YYYY-MM-DD date")
	}
	end, err := recurrence.ParseDate(rawEnd)
	if err != nil {
		vErr.add("end", "end must be a YYYY-MM-DD date")
	}
	if vErr.HasErrors() {
		return recurrence.Date{}, recurrence.Date{}, vErr
	}
	if end.Before(start) {
		vErr.add("end", "end must not precede start")
	} else if start.DaysUntil(end) > MaxCalendarWindowDays {
		vErr.add("end", fmt.Sprintf("window must not exceed %d days", MaxCalendarWindowDays))
	}
	return start, end, vErr
}
