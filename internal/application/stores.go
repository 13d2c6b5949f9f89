package application

import (
	"context"
	"fmt"

	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/persistence"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

// ScheduleStore adapts a persistence.ScheduleRepository to ScheduleRepository.
type ScheduleStore struct {
	repo persistence.ScheduleRepository
}

func NewScheduleStore(repo persistence.ScheduleRepository) *ScheduleStore {
	return &ScheduleStore{repo: repo}
}

func (s *ScheduleStore) CreateSchedule(ctx context.Context, schedule Schedule) (Schedule, error) {
	if err := s.repo.CreateSchedule(ctx, toPersistenceSchedule(schedule)); err != nil {
		return Schedule{}, err
	}
	return schedule, nil
}

func (s *ScheduleStore) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	model, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	return toApplicationSchedule(model)
}

func (s *ScheduleStore) UpdateSchedule(ctx context.Context, schedule Schedule) (Schedule, error) {
	if err := s.repo.UpdateSchedule(ctx, toPersistenceSchedule(schedule)); err != nil {
		return Schedule{}, err
	}
	return schedule, nil
}

func (s *ScheduleStore) DeleteSchedule(ctx context.Context, id string) error {
	return s.repo.DeleteSchedule(ctx, id)
}

func (s *ScheduleStore) ListSchedules(ctx context.Context, filter ScheduleRepositoryFilter) ([]Schedule, error) {
	query := persistence.ScheduleFilter{ClientID: filter.ClientID}
	if filter.Assignee != nil {
		query.Assignee = &persistence.Assignee{
			WorkerID:   filter.Assignee.WorkerID,
			WorkerKind: string(filter.Assignee.WorkerKind),
		}
	}
	for _, status := range filter.Statuses {
		query.Statuses = append(query.Statuses, string(status))
	}

	models, err := s.repo.ListSchedules(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]Schedule, 0, len(models))
	for _, model := range models {
		schedule, err := toApplicationSchedule(model)
		if err != nil {
			return nil, err
		}
		out = append(out, schedule)
	}
	return out, nil
}

var _ ScheduleRepository = (*ScheduleStore)(nil)

// SiteStore adapts a persistence.SiteRepository to SiteRepository and ClientDirectory.
type SiteStore struct {
	repo persistence.SiteRepository
}

func NewSiteStore(repo persistence.SiteRepository) *SiteStore {
	return &SiteStore{repo: repo}
}

// UpsertSite keeps the original creation time when the site already exists.
func (s *SiteStore) UpsertSite(ctx context.Context, site Site) (Site, error) {
	if existing, err := s.repo.GetSite(ctx, site.ClientID); err == nil {
		site.CreatedAt = existing.CreatedAt
	} else if !isNotFoundError(err) {
		return Site{}, err
	}

	err := s.repo.UpsertSite(ctx, persistence.ClientSite{
		ClientID:  site.ClientID,
		Name:      site.Name,
		Latitude:  site.Location.Latitude,
		Longitude: site.Location.Longitude,
		CreatedAt: site.CreatedAt,
		UpdatedAt: site.UpdatedAt,
	})
	if err != nil {
		return Site{}, err
	}
	return site, nil
}

func (s *SiteStore) GetSite(ctx context.Context, clientID string) (Site, error) {
	model, err := s.repo.GetSite(ctx, clientID)
	if err != nil {
		return Site{}, err
	}
	return Site{
		ClientID:  model.ClientID,
		Name:      model.Name,
		Location:  geo.Coordinate{Latitude: model.Latitude, Longitude: model.Longitude},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

var (
	_ SiteRepository  = (*SiteStore)(nil)
	_ ClientDirectory = (*SiteStore)(nil)
)

// PinStore adapts a persistence.PinRepository to PinRepository.
type PinStore struct {
	repo persistence.PinRepository
}

func NewPinStore(repo persistence.PinRepository) *PinStore {
	return &PinStore{repo: repo}
}

func (s *PinStore) SetPin(ctx context.Context, pin PinRecord) error {
	return s.repo.SetPin(ctx, persistence.OrganizationPin{Hash: pin.Hash, UpdatedBy: pin.UpdatedBy, UpdatedAt: pin.UpdatedAt})
}

func (s *PinStore) GetPin(ctx context.Context) (PinRecord, error) {
	model, err := s.repo.GetPin(ctx)
	if err != nil {
		return PinRecord{}, err
	}
	return PinRecord{Hash: model.Hash, UpdatedBy: model.UpdatedBy, UpdatedAt: model.UpdatedAt}, nil
}

var _ PinRepository = (*PinStore)(nil)

func toPersistenceSchedule(schedule Schedule) persistence.ScheduleDefinition {
	model := persistence.ScheduleDefinition{
		ID:             schedule.ID,
		ClientID:       schedule.ClientID,
		Title:          schedule.Title,
		RecurrenceType: string(schedule.RecurrenceType),
		StartDate:      schedule.StartDate.String(),
		StartTime:      schedule.StartTime.String(),
		EndTime:        schedule.EndTime.String(),
		Status:         string(schedule.Status),
		CreatedAt:      schedule.CreatedAt,
		UpdatedAt:      schedule.UpdatedAt,
	}
	if schedule.DayOfWeek != nil {
		day := int(*schedule.DayOfWeek)
		model.DayOfWeek = &day
	}
	for _, assignee := range schedule.Assignees {
		model.Assignees = append(model.Assignees, persistence.Assignee{
			WorkerID:   assignee.WorkerID,
			WorkerKind: string(assignee.WorkerKind),
		})
	}
	return model
}

// toApplicationSchedule parses stored text columns. A row that no longer
// parses is reported rather than silently skipped.
func toApplicationSchedule(model persistence.ScheduleDefinition) (Schedule, error) {
	kind, err := recurrence.ParseKind(model.RecurrenceType)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %s: %w", model.ID, err)
	}
	status, err := recurrence.ParseStatus(model.Status)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %s: %w", model.ID, err)
	}
	startDate, err := recurrence.ParseDate(model.StartDate)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %s: %w", model.ID, err)
	}
	startTime, err := recurrence.ParseTimeOfDay(model.StartTime)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %s: %w", model.ID, err)
	}
	endTime, err := recurrence.ParseTimeOfDay(model.EndTime)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %s: %w", model.ID, err)
	}

	schedule := Schedule{
		ID:             model.ID,
		ClientID:       model.ClientID,
		Title:          model.Title,
		RecurrenceType: kind,
		StartDate:      startDate,
		StartTime:      startTime,
		EndTime:        endTime,
		Status:         status,
		CreatedAt:      model.CreatedAt.UTC(),
		UpdatedAt:      model.UpdatedAt.UTC(),
	}
	if model.DayOfWeek != nil {
		day := recurrence.DayOfWeek(*model.DayOfWeek)
		schedule.DayOfWeek = &day
	}
	for _, assignee := range model.Assignees {
		schedule.Assignees = append(schedule.Assignees, shift.Session{
			WorkerID:   assignee.WorkerID,
			WorkerKind: shift.WorkerKind(assignee.WorkerKind),
		})
	}
	return schedule, nil
}

