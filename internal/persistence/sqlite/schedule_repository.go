package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/fieldops/internal/persistence"
)

const scheduleColumns = `s.id, s.client_id, s.title, s.recurrence_type, s.start_date, s.day_of_week,
	s.start_time, s.end_time, s.status, s.created_at, s.updated_at`

// ScheduleRepository implements persistence.ScheduleRepository using SQLite
type ScheduleRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewScheduleRepository creates a new SQLite schedule repository
func NewScheduleRepository(pool *ConnectionPool) *ScheduleRepository {
	return &ScheduleRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateSchedule inserts a schedule definition together with its assignees
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, schedule persistence.ScheduleDefinition) error {
	if schedule.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	if schedule.UpdatedAt.IsZero() {
		schedule.UpdatedAt = schedule.CreatedAt
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO schedule_definitions (id, client_id, title, recurrence_type, start_date, day_of_week,
				start_time, end_time, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		_, err := r.helper.ExecTx(ctx, tx, query,
			schedule.ID,
			schedule.ClientID,
			schedule.Title,
			schedule.RecurrenceType,
			schedule.StartDate,
			nullInt(schedule.DayOfWeek),
			schedule.StartTime,
			schedule.EndTime,
			schedule.Status,
			formatTime(schedule.CreatedAt),
			formatTime(schedule.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		return r.insertAssignees(ctx, tx, schedule.ID, schedule.Assignees)
	})
}

// UpdateSchedule replaces a schedule definition and its assignees. CreatedAt
// is preserved from the stored row.
func (r *ScheduleRepository) UpdateSchedule(ctx context.Context, schedule persistence.ScheduleDefinition) error {
	if schedule.ID == "" {
		return persistence.ErrNotFound
	}

	if schedule.UpdatedAt.IsZero() {
		schedule.UpdatedAt = time.Now().UTC()
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE schedule_definitions
			SET client_id = ?, title = ?, recurrence_type = ?, start_date = ?, day_of_week = ?,
				start_time = ?, end_time = ?, status = ?, updated_at = ?
			WHERE id = ?
		`

		result, err := r.helper.ExecTx(ctx, tx, query,
			schedule.ClientID,
			schedule.Title,
			schedule.RecurrenceType,
			schedule.StartDate,
			nullInt(schedule.DayOfWeek),
			schedule.StartTime,
			schedule.EndTime,
			schedule.Status,
			formatTime(schedule.UpdatedAt),
			schedule.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}

		if _, err := r.helper.ExecTx(ctx, tx, "DELETE FROM schedule_assignees WHERE schedule_id = ?", schedule.ID); err != nil {
			return r.mapper.MapError(err)
		}

		return r.insertAssignees(ctx, tx, schedule.ID, schedule.Assignees)
	})
}

// GetSchedule retrieves a schedule and its assignees from one snapshot
func (r *ScheduleRepository) GetSchedule(ctx context.Context, id string) (persistence.ScheduleDefinition, error) {
	if id == "" {
		return persistence.ScheduleDefinition{}, persistence.ErrNotFound
	}

	var schedule persistence.ScheduleDefinition
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		row := r.helper.QueryRowTx(ctx, tx, `SELECT `+scheduleColumns+` FROM schedule_definitions s WHERE s.id = ?`, id)
		found, err := scanSchedule(row)
		if err != nil {
			return r.mapper.MapError(err)
		}

		assignees, err := r.loadAssignees(ctx, tx, []string{id})
		if err != nil {
			return err
		}
		found.Assignees = assignees[id]
		schedule = found
		return nil
	})
	if err != nil {
		return persistence.ScheduleDefinition{}, err
	}

	return schedule, nil
}

// ListSchedules lists schedules matching the filter, ordered by start date and ID
func (r *ScheduleRepository) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.ScheduleDefinition, error) {
	query, args := buildScheduleListQuery(filter)

	var schedules []persistence.ScheduleDefinition
	err := r.pool.WithReadOnlyTransaction(ctx, func(tx *sql.Tx) error {
		listed, ids, err := r.scanScheduleRows(ctx, tx, query, args)
		if err != nil {
			return err
		}

		assignees, err := r.loadAssignees(ctx, tx, ids)
		if err != nil {
			return err
		}
		for i := range listed {
			listed[i].Assignees = assignees[listed[i].ID]
		}
		schedules = listed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return schedules, nil
}

func (r *ScheduleRepository) scanScheduleRows(ctx context.Context, tx *sql.Tx, query string, args []any) ([]persistence.ScheduleDefinition, []string, error) {
	rows, err := r.helper.QueryTx(ctx, tx, query, args...)
	if err != nil {
		return nil, nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var (
		schedules []persistence.ScheduleDefinition
		ids       []string
	)
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, nil, r.mapper.MapError(err)
		}
		schedules = append(schedules, schedule)
		ids = append(ids, schedule.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, r.mapper.MapError(err)
	}
	return schedules, ids, nil
}

// DeleteSchedule removes a schedule and its assignees
func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx, "DELETE FROM schedule_assignees WHERE schedule_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := r.helper.ExecTx(ctx, tx, "DELETE FROM schedule_definitions WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}

		return nil
	})
}

func (r *ScheduleRepository) insertAssignees(ctx context.Context, tx *sql.Tx, scheduleID string, assignees []persistence.Assignee) error {
	seen := make(map[persistence.Assignee]struct{}, len(assignees))
	for _, assignee := range assignees {
		assignee.WorkerID = strings.TrimSpace(assignee.WorkerID)
		if assignee.WorkerID == "" {
			continue
		}
		if _, dup := seen[assignee]; dup {
			continue
		}
		seen[assignee] = struct{}{}

		_, err := r.helper.ExecTx(ctx, tx,
			"INSERT INTO schedule_assignees (schedule_id, worker_id, worker_kind) VALUES (?, ?, ?)",
			scheduleID, assignee.WorkerID, assignee.WorkerKind)
		if err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

// loadAssignees returns the assignees of the given schedules keyed by schedule ID
func (r *ScheduleRepository) loadAssignees(ctx context.Context, tx *sql.Tx, scheduleIDs []string) (map[string][]persistence.Assignee, error) {
	result := make(map[string][]persistence.Assignee, len(scheduleIDs))
	if len(scheduleIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT schedule_id, worker_id, worker_kind
		FROM schedule_assignees
		WHERE schedule_id IN (` + placeholders(len(scheduleIDs)) + `)
		ORDER BY schedule_id ASC, worker_kind ASC, worker_id ASC
	`
	args := make([]any, len(scheduleIDs))
	for i, id := range scheduleIDs {
		args[i] = id
	}

	rows, err := r.helper.QueryTx(ctx, tx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var scheduleID string
		var assignee persistence.Assignee
		if err := rows.Scan(&scheduleID, &assignee.WorkerID, &assignee.WorkerKind); err != nil {
			return nil, r.mapper.MapError(err)
		}
		result[scheduleID] = append(result[scheduleID], assignee)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return result, nil
}

func buildScheduleListQuery(filter persistence.ScheduleFilter) (string, []any) {
	query := `SELECT DISTINCT ` + scheduleColumns + ` FROM schedule_definitions s`

	var (
		conditions []string
		args       []any
	)

	if filter.Assignee != nil {
		query += ` JOIN schedule_assignees sa ON sa.schedule_id = s.id`
		conditions = append(conditions, "sa.worker_id = ? AND sa.worker_kind = ?")
		args = append(args, filter.Assignee.WorkerID, filter.Assignee.WorkerKind)
	}

	if filter.ClientID != "" {
		conditions = append(conditions, "s.client_id = ?")
		args = append(args, filter.ClientID)
	}

	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "s.status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY s.start_date ASC, s.id ASC"
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (persistence.ScheduleDefinition, error) {
	var (
		schedule             persistence.ScheduleDefinition
		dayOfWeek            sql.NullInt64
		createdAt, updatedAt string
	)

	err := row.Scan(
		&schedule.ID,
		&schedule.ClientID,
		&schedule.Title,
		&schedule.RecurrenceType,
		&schedule.StartDate,
		&dayOfWeek,
		&schedule.StartTime,
		&schedule.EndTime,
		&schedule.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.ScheduleDefinition{}, err
	}

	if dayOfWeek.Valid {
		d := int(dayOfWeek.Int64)
		schedule.DayOfWeek = &d
	}
	if schedule.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.ScheduleDefinition{}, err
	}
	if schedule.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.ScheduleDefinition{}, err
	}

	return schedule, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
