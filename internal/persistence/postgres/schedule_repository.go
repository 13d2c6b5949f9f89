package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/example/fieldops/internal/persistence"
)

const dateLayout = "2006-01-02"

const scheduleColumns = `s.id, s.client_id, s.title, s.recurrence_type, s.start_date, s.day_of_week,
	s.start_time, s.end_time, s.status, s.created_at, s.updated_at`

// ScheduleRepository implements persistence.ScheduleRepository on PostgreSQL.
type ScheduleRepository struct {
	db *sql.DB
}

func (r *ScheduleRepository) CreateSchedule(ctx context.Context, schedule persistence.ScheduleDefinition) error {
	if schedule.ID == "" {
		return persistence.ErrConstraintViolation
	}
	createdAt := nowIfZero(schedule.CreatedAt)
	updatedAt := schedule.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_definitions (id, client_id, title, recurrence_type, start_date, day_of_week,
				start_time, end_time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			schedule.ID, schedule.ClientID, schedule.Title, schedule.RecurrenceType, schedule.StartDate,
			nullInt(schedule.DayOfWeek), schedule.StartTime, schedule.EndTime, schedule.Status,
			createdAt, updatedAt.UTC(),
		)
		if err != nil {
			return mapError(err)
		}
		return insertAssignees(ctx, tx, schedule.ID, schedule.Assignees)
	})
}

func (r *ScheduleRepository) UpdateSchedule(ctx context.Context, schedule persistence.ScheduleDefinition) error {
	if schedule.ID == "" {
		return persistence.ErrNotFound
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE schedule_definitions
			SET client_id = $1, title = $2, recurrence_type = $3, start_date = $4, day_of_week = $5,
				start_time = $6, end_time = $7, status = $8, updated_at = $9
			WHERE id = $10`,
			schedule.ClientID, schedule.Title, schedule.RecurrenceType, schedule.StartDate,
			nullInt(schedule.DayOfWeek), schedule.StartTime, schedule.EndTime, schedule.Status,
			nowIfZero(schedule.UpdatedAt), schedule.ID,
		)
		if err != nil {
			return mapError(err)
		}
		if err := expectOneRow(result); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_assignees WHERE schedule_id = $1`, schedule.ID); err != nil {
			return mapError(err)
		}
		return insertAssignees(ctx, tx, schedule.ID, schedule.Assignees)
	})
}

func (r *ScheduleRepository) GetSchedule(ctx context.Context, id string) (persistence.ScheduleDefinition, error) {
	if id == "" {
		return persistence.ScheduleDefinition{}, persistence.ErrNotFound
	}

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedule_definitions s WHERE s.id = $1`, id))
	if err != nil {
		return persistence.ScheduleDefinition{}, mapError(err)
	}

	assignees, err := r.loadAssignees(ctx, []string{id})
	if err != nil {
		return persistence.ScheduleDefinition{}, err
	}
	schedule.Assignees = assignees[id]
	return schedule, nil
}

func (r *ScheduleRepository) ListSchedules(ctx context.Context, filter persistence.ScheduleFilter) ([]persistence.ScheduleDefinition, error) {
	query, args := buildListQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var (
		schedules []persistence.ScheduleDefinition
		ids       []string
	)
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, mapError(err)
		}
		schedules = append(schedules, schedule)
		ids = append(ids, schedule.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}

	assignees, err := r.loadAssignees(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		schedules[i].Assignees = assignees[schedules[i].ID]
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule; assignees go with it through ON DELETE CASCADE.
func (r *ScheduleRepository) DeleteSchedule(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedule_definitions WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectOneRow(result)
}

func (r *ScheduleRepository) loadAssignees(ctx context.Context, ids []string) (map[string][]persistence.Assignee, error) {
	result := make(map[string][]persistence.Assignee, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT schedule_id, worker_id, worker_kind
		FROM schedule_assignees
		WHERE schedule_id = ANY($1)
		ORDER BY schedule_id, worker_kind, worker_id`, pq.Array(ids))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var scheduleID string
		var assignee persistence.Assignee
		if err := rows.Scan(&scheduleID, &assignee.WorkerID, &assignee.WorkerKind); err != nil {
			return nil, mapError(err)
		}
		result[scheduleID] = append(result[scheduleID], assignee)
	}
	return result, mapError(rows.Err())
}

func insertAssignees(ctx context.Context, tx *sql.Tx, scheduleID string, assignees []persistence.Assignee) error {
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

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_assignees (schedule_id, worker_id, worker_kind) VALUES ($1, $2, $3)`,
			scheduleID, assignee.WorkerID, assignee.WorkerKind); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func buildListQuery(filter persistence.ScheduleFilter) (string, []any) {
	query := `SELECT DISTINCT ` + scheduleColumns + ` FROM schedule_definitions s`

	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Assignee != nil {
		query += ` JOIN schedule_assignees sa ON sa.schedule_id = s.id`
		conditions = append(conditions,
			"sa.worker_id = "+arg(filter.Assignee.WorkerID)+" AND sa.worker_kind = "+arg(filter.Assignee.WorkerKind))
	}
	if filter.ClientID != "" {
		conditions = append(conditions, "s.client_id = "+arg(filter.ClientID))
	}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, "s.status = ANY("+arg(pq.Array(filter.Statuses))+")")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY s.start_date ASC, s.id ASC"
	return query, args
}

func scanSchedule(row rowScanner) (persistence.ScheduleDefinition, error) {
	var (
		schedule  persistence.ScheduleDefinition
		startDate time.Time
		dayOfWeek sql.NullInt64
	)
	err := row.Scan(
		&schedule.ID,
		&schedule.ClientID,
		&schedule.Title,
		&schedule.RecurrenceType,
		&startDate,
		&dayOfWeek,
		&schedule.StartTime,
		&schedule.EndTime,
		&schedule.Status,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return persistence.ScheduleDefinition{}, err
	}

	schedule.StartDate = startDate.Format(dateLayout)
	if dayOfWeek.Valid {
		d := int(dayOfWeek.Int64)
		schedule.DayOfWeek = &d
	}
	schedule.CreatedAt = schedule.CreatedAt.UTC()
	schedule.UpdatedAt = schedule.UpdatedAt.UTC()
	return schedule, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
