package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/fieldops/internal/persistence"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

// ScheduleRepository captures the persistence interactions needed by the service.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule Schedule) (Schedule, error)
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	UpdateSchedule(ctx context.Context, schedule Schedule) (Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, filter ScheduleRepositoryFilter) ([]Schedule, error)
}

// ClientDirectory reports whether a client has a registered site.
type ClientDirectory interface {
	GetSite(ctx context.Context, clientID string) (Site, error)
}

// ScheduleService orchestrates validation and persistence for schedule definitions.
type ScheduleService struct {
	schedules   ScheduleRepository
	clients     ClientDirectory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(schedules ScheduleRepository, clients ClientDirectory, idGenerator func() string, now func() time.Time) *ScheduleService {
	return NewScheduleServiceWithLogger(schedules, clients, idGenerator, now, nil)
}

// NewScheduleServiceWithLogger wires dependencies with a specified logger.
func NewScheduleServiceWithLogger(schedules ScheduleRepository, clients ClientDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ScheduleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		schedules:   schedules,
		clients:     clients,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// CreateSchedule validates an administrator's definition before persisting it as active.
func (s *ScheduleService) CreateSchedule(ctx context.Context, params CreateScheduleParams) (schedule Schedule, err error) {
	if s == nil {
		return Schedule{}, fmt.Errorf("ScheduleService is nil")
	}

	logger := s.loggerWith(ctx, "CreateSchedule", "worker_id", params.Session.WorkerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("schedule_id", schedule.ID).InfoContext(ctx, "schedule created")
	}()

	if !params.Session.IsAdmin() {
		return Schedule{}, ErrUnauthorized
	}

	schedule, vErr := buildSchedule(params.Input)
	if vErr.HasErrors() {
		return Schedule{}, vErr
	}
	if err := s.ensureClientExists(ctx, schedule.ClientID); err != nil {
		return Schedule{}, err
	}

	createdAt := s.now()
	schedule.ID = s.idGenerator()
	schedule.Status = recurrence.StatusActive
	schedule.CreatedAt = createdAt
	schedule.UpdatedAt = createdAt

	if s.schedules == nil {
		return schedule, nil
	}

	persisted, err := s.schedules.CreateSchedule(ctx, schedule)
	if err != nil {
		return Schedule{}, mapScheduleRepoError(err)
	}
	return persisted, nil
}

// UpdateSchedule replaces the definition fields of an existing schedule. The
// status and creation time are preserved.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, params UpdateScheduleParams) (schedule Schedule, err error) {
	if s == nil {
		return Schedule{}, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return Schedule{}, fmt.Errorf("schedule repository not configured")
	}

	logger := s.loggerWith(ctx, "UpdateSchedule",
		"worker_id", params.Session.WorkerID,
		"schedule_id", params.ScheduleID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "schedule updated")
	}()

	if !params.Session.IsAdmin() {
		return Schedule{}, ErrUnauthorized
	}

	existing, err := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if err != nil {
		return Schedule{}, mapScheduleRepoError(err)
	}

	updated, vErr := buildSchedule(params.Input)
	if vErr.HasErrors() {
		return Schedule{}, vErr
	}
	if err := s.ensureClientExists(ctx, updated.ClientID); err != nil {
		return Schedule{}, err
	}

	updated.ID = existing.ID
	updated.Status = existing.Status
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()

	persisted, err := s.schedules.UpdateSchedule(ctx, updated)
	if err != nil {
		return Schedule{}, mapScheduleRepoError(err)
	}
	return persisted, nil
}

// SetScheduleStatus pauses, resumes, or ends a schedule. Ended schedules are final.
func (s *ScheduleService) SetScheduleStatus(ctx context.Context, params SetScheduleStatusParams) (schedule Schedule, err error) {
	if s == nil {
		return Schedule{}, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return Schedule{}, fmt.Errorf("schedule repository not configured")
	}

	logger := s.loggerWith(ctx, "SetScheduleStatus",
		"worker_id", params.Session.WorkerID,
		"schedule_id", params.ScheduleID,
		"status", params.Status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change schedule status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "schedule status changed")
	}()

	if !params.Session.IsAdmin() {
		return Schedule{}, ErrUnauthorized
	}

	status, err := recurrence.ParseStatus(params.Status)
	if err != nil {
		return Schedule{}, newValidationError("status", "status must be one of active, paused, ended")
	}

	existing, err := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if err != nil {
		return Schedule{}, mapScheduleRepoError(err)
	}
	if existing.Status == status {
		return existing, nil
	}
	if existing.Status == recurrence.StatusEnded {
		return Schedule{}, newValidationError("status", "an ended schedule cannot be changed")
	}

	existing.Status = status
	existing.UpdatedAt = s.now()

	persisted, err := s.schedules.UpdateSchedule(ctx, existing)
	if err != nil {
		return Schedule{}, mapScheduleRepoError(err)
	}
	return persisted, nil
}

// GetSchedule returns a schedule. Staff may only read schedules assigned to them.
func (s *ScheduleService) GetSchedule(ctx context.Context, session shift.Session, scheduleID string) (Schedule, error) {
	if s == nil {
		return Schedule{}, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return Schedule{}, fmt.Errorf("schedule repository not configured")
	}
	if err := session.Validate(); err != nil {
		return Schedule{}, ErrUnauthorized
	}

	schedule, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Schedule{}, mapScheduleRepoError(err)
	}
	if !session.IsAdmin() && !schedule.AssignedTo(session) {
		return Schedule{}, ErrUnauthorized
	}
	return schedule, nil
}

// ListSchedules returns the schedules visible to the session.
func (s *ScheduleService) ListSchedules(ctx context.Context, params ListSchedulesParams) ([]Schedule, error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return nil, nil
	}
	if err := params.Session.Validate(); err != nil {
		return nil, ErrUnauthorized
	}

	filter := ScheduleRepositoryFilter{ClientID: strings.TrimSpace(params.ClientID)}
	if !params.Session.IsAdmin() {
		session := params.Session
		filter.Assignee = &session
	}
	for _, raw := range params.Statuses {
		status, err := recurrence.ParseStatus(raw)
		if err != nil {
			return nil, newValidationError("status", fmt.Sprintf("unknown status %q", raw))
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	schedules, err := s.schedules.ListSchedules(ctx, filter)
	if err != nil {
		return nil, mapScheduleRepoError(err)
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule definition. Shift records that reference
// it keep their schedule id.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, session shift.Session, scheduleID string) (err error) {
	if s == nil {
		return fmt.Errorf("ScheduleService is nil")
	}
	if s.schedules == nil {
		return fmt.Errorf("schedule repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteSchedule",
		"worker_id", session.WorkerID,
		"schedule_id", scheduleID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "schedule deleted")
	}()

	if !session.IsAdmin() {
		return ErrUnauthorized
	}
	if err := s.schedules.DeleteSchedule(ctx, scheduleID); err != nil {
		return mapScheduleRepoError(err)
	}
	return nil
}

func (s *ScheduleService) ensureClientExists(ctx context.Context, clientID string) error {
	if s.clients == nil {
		return nil
	}
	if _, err := s.clients.GetSite(ctx, clientID); err != nil {
		if isNotFoundError(err) {
			return newValidationError("client_id", "client has no registered site")
		}
		return err
	}
	return nil
}

// buildSchedule validates input and converts it into a Schedule without
// identity, status, or timestamps.
func buildSchedule(input ScheduleInput) (Schedule, *ValidationError) {
	vErr := &ValidationError{}
	schedule := Schedule{
		ClientID: strings.TrimSpace(input.ClientID),
		Title:    strings.TrimSpace(input.Title),
	}

	if schedule.ClientID == "" {
		vErr.add("client_id", "client_id is required")
	}

	kind, err := recurrence.ParseKind(input.RecurrenceType)
	if err != nil {
		vErr.add("recurrence_type", "recurrence_type must be one of one_time, weekly, bi_weekly, monthly")
	}
	schedule.RecurrenceType = kind

	if schedule.StartDate, err = recurrence.ParseDate(input.StartDate); err != nil {
		vErr.add("start_date", "start_date must be a YYYY-MM-DD date")
	}

	switch {
	case input.DayOfWeek == nil:
		if kind.Recurring() {
			vErr.add("day_of_week", "day_of_week is required for recurring schedules")
		}
	case kind == recurrence.KindOneTime:
		vErr.add("day_of_week", "day_of_week must be empty for one_time schedules")
	default:
		day := recurrence.DayOfWeek(*input.DayOfWeek)
		if !day.Valid() {
			vErr.add("day_of_week", "day_of_week must be between 0 (Monday) and 6 (Sunday)")
		} else {
			schedule.DayOfWeek = &day
		}
	}

	startTime, startErr := recurrence.ParseTimeOfDay(input.StartTime)
	if startErr != nil {
		vErr.add("start_time", "start_time must be HH:MM or HH:MM:SS")
	}
	endTime, endErr := recurrence.ParseTimeOfDay(input.EndTime)
	if endErr != nil {
		vErr.add("end_time", "end_time must be HH:MM or HH:MM:SS")
	}
	if startErr == nil && endErr == nil && !endTime.After(startTime) {
		vErr.add("end_time", "end_time must be after start_time")
	}
	schedule.StartTime = startTime
	schedule.EndTime = endTime

	assignees, aErr := normalizeAssignees(input.Assignees)
	vErr.merge(aErr)
	schedule.Assignees = assignees

	return schedule, vErr
}

func normalizeAssignees(input []Assignee) ([]shift.Session, *ValidationError) {
	vErr := &ValidationError{}
	seen := make(map[shift.Session]struct{}, len(input))
	out := make([]shift.Session, 0, len(input))

	for _, assignee := range input {
		id := strings.TrimSpace(assignee.WorkerID)
		kind, ok := shift.ParseWorkerKind(assignee.WorkerKind)
		if id == "" || !ok {
			vErr.add("assignees", "each assignee needs a worker_id and a worker_kind of staff or admin")
			continue
		}
		session := shift.Session{WorkerID: id, WorkerKind: kind}
		if _, dup := seen[session]; dup {
			continue
		}
		seen[session] = struct{}{}
		out = append(out, session)
	}

	if len(out) == 0 && !vErr.HasErrors() {
		vErr.add("assignees", "at least one assignee is required")
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkerKind != out[j].WorkerKind {
			return out[i].WorkerKind > out[j].WorkerKind
		}
		return out[i].WorkerID < out[j].WorkerID
	})
	return out, vErr
}

func mapScheduleRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return newValidationError("schedule", "schedule violates a storage constraint")
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return newValidationError("client_id", "related records are missing")
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
