package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/fieldops/internal/persistence"
)

var shiftRowColumns = []string{
	"id", "worker_id", "worker_kind", "client_id", "schedule_id", "check_in_at", "check_out_at",
	"check_in_latitude", "check_in_longitude", "check_out_latitude", "check_out_longitude",
	"check_in_distance_miles", "check_out_distance_miles", "pin_override_used", "message", "photo_urls",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Storage) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock, New(db)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: persistence.ErrNotFound},
		{name: "open shift index", err: &pq.Error{Code: "23505", Constraint: openShiftIndex}, want: persistence.ErrOpenShiftExists},
		{name: "other unique", err: &pq.Error{Code: "23505", Constraint: "schedule_definitions_pkey"}, want: persistence.ErrDuplicate},
		{name: "foreign key", err: &pq.Error{Code: "23503"}, want: persistence.ErrForeignKeyViolation},
		{name: "check", err: &pq.Error{Code: "23514"}, want: persistence.ErrConstraintViolation},
		{name: "not null", err: &pq.Error{Code: "23502"}, want: persistence.ErrConstraintViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	assert.NoError(t, mapError(nil))
	other := errors.New("boom")
	assert.Same(t, other, mapError(other))
}

func TestCreateOpenShift_Success(t *testing.T) {
	_, mock, storage := setupMockDB(t)
	checkIn := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO shift_records`).
		WithArgs("shift-1", "worker-1", "staff", "client-1", sqlmock.AnyArg(), checkIn,
			40.0, -73.0, 0.1, false, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := storage.Shifts.CreateOpenShift(context.Background(), persistence.ShiftRecord{
		ID: "shift-1", WorkerID: "worker-1", WorkerKind: "staff", ClientID: "client-1",
		CheckInAt: checkIn, CheckInLatitude: 40, CheckInLongitude: -73, CheckInDistanceMiles: 0.1,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOpenShift_AlreadyOpen(t *testing.T) {
	_, mock, storage := setupMockDB(t)

	mock.ExpectExec(`INSERT INTO shift_records`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: openShiftIndex})

	err := storage.Shifts.CreateOpenShift(context.Background(), persistence.ShiftRecord{
		ID: "shift-2", WorkerID: "worker-1", WorkerKind: "staff", ClientID: "client-1",
		CheckInAt: time.Now().UTC(),
	})

	assert.ErrorIs(t, err, persistence.ErrOpenShiftExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseShift_Success(t *testing.T) {
	_, mock, storage := setupMockDB(t)
	checkIn := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)
	checkOut := checkIn.Add(8 * time.Hour)

	rows := sqlmock.NewRows(shiftRowColumns).AddRow(
		"shift-1", "worker-1", "staff", "client-1", "sched-1", checkIn, checkOut,
		40.0, -73.0, 40.001, -73.001, 0.1, 0.2, true, "done", "{https://img/1.jpg,https://img/2.jpg}",
	)
	mock.ExpectQuery(`UPDATE shift_records`).
		WithArgs(checkOut, 40.001, -73.001, 0.2, true, "done", sqlmock.AnyArg(), "shift-1", "worker-1", "staff").
		WillReturnRows(rows)

	shift, err := storage.Shifts.CloseShift(context.Background(), persistence.ShiftClosure{
		ID: "shift-1", WorkerID: "worker-1", WorkerKind: "staff", CheckOutAt: checkOut,
		Latitude: 40.001, Longitude: -73.001, DistanceMiles: 0.2, PinOverrideUsed: true,
		Message: "done", PhotoURLs: []string{"https://img/1.jpg", "https://img/2.jpg"},
	})

	require.NoError(t, err)
	require.NotNil(t, shift.CheckOutAt)
	assert.True(t, shift.CheckOutAt.Equal(checkOut))
	require.NotNil(t, shift.ScheduleID)
	assert.Equal(t, "sched-1", *shift.ScheduleID)
	require.NotNil(t, shift.CheckOutDistanceMiles)
	assert.InDelta(t, 0.2, *shift.CheckOutDistanceMiles, 1e-9)
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, shift.PhotoURLs)
	assert.True(t, shift.PinOverrideUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseShift_NotOpen(t *testing.T) {
	_, mock, storage := setupMockDB(t)

	mock.ExpectQuery(`UPDATE shift_records`).WillReturnError(sql.ErrNoRows)

	_, err := storage.Shifts.CloseShift(context.Background(), persistence.ShiftClosure{
		ID: "shift-1", WorkerID: "worker-1", WorkerKind: "staff", CheckOutAt: time.Now(),
	})

	assert.ErrorIs(t, err, persistence.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenShift_NullCheckout(t *testing.T) {
	_, mock, storage := setupMockDB(t)
	checkIn := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(shiftRowColumns).AddRow(
		"shift-1", "worker-1", "admin", "client-1", nil, checkIn, nil,
		40.0, -73.0, nil, nil, 0.0, nil, false, "", "{}",
	)
	mock.ExpectQuery(`(?s)SELECT .+ FROM shift_records`).
		WithArgs("worker-1", "admin").
		WillReturnRows(rows)

	shift, err := storage.Shifts.GetOpenShift(context.Background(), "worker-1", "admin")

	require.NoError(t, err)
	assert.Nil(t, shift.CheckOutAt)
	assert.Nil(t, shift.ScheduleID)
	assert.Nil(t, shift.CheckOutLatitude)
	assert.Empty(t, shift.PhotoURLs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSchedule_InsertsAssigneesInTransaction(t *testing.T) {
	_, mock, storage := setupMockDB(t)
	day := 1

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO schedule_definitions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO schedule_assignees`).
		WithArgs("sched-1", "alice", "staff").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO schedule_assignees`).
		WithArgs("sched-1", "alice", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := storage.Schedules.CreateSchedule(context.Background(), persistence.ScheduleDefinition{
		ID: "sched-1", ClientID: "client-1", RecurrenceType: "weekly", StartDate: "2024-01-08",
		DayOfWeek: &day, StartTime: "09:00", EndTime: "17:00", Status: "active",
		Assignees: []persistence.Assignee{
			{WorkerID: "alice", WorkerKind: "staff"},
			{WorkerID: "alice", WorkerKind: "staff"},
			{WorkerID: "alice", WorkerKind: "admin"},
		},
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSchedule_RollsBackOnAssigneeFailure(t *testing.T) {
	_, mock, storage := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO schedule_definitions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO schedule_assignees`).WillReturnError(&pq.Error{Code: "23514"})
	mock.ExpectRollback()

	err := storage.Schedules.CreateSchedule(context.Background(), persistence.ScheduleDefinition{
		ID: "sched-1", ClientID: "client-1", RecurrenceType: "one_time", StartDate: "2024-01-08",
		StartTime: "09:00", EndTime: "17:00", Status: "active",
		Assignees: []persistence.Assignee{{WorkerID: "alice", WorkerKind: "robot"}},
	})

	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSchedule_NotFound(t *testing.T) {
	_, mock, storage := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE schedule_definitions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := storage.Schedules.UpdateSchedule(context.Background(), persistence.ScheduleDefinition{ID: "missing"})

	assert.ErrorIs(t, err, persistence.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSchedule_LoadsAssignees(t *testing.T) {
	_, mock, storage := setupMockDB(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT .+ FROM schedule_definitions s WHERE s.id = \$1`).
		WithArgs("sched-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "client_id", "title", "recurrence_type", "start_date", "day_of_week",
			"start_time", "end_time", "status", "created_at", "updated_at",
		}).AddRow("sched-1", "client-1", "Morning", "weekly", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
			int64(1), "09:00", "17:00", "active", created, created))
	mock.ExpectQuery(`SELECT schedule_id, worker_id, worker_kind`).
		WillReturnRows(sqlmock.NewRows([]string{"schedule_id", "worker_id", "worker_kind"}).
			AddRow("sched-1", "bob", "staff"))

	schedule, err := storage.Schedules.GetSchedule(context.Background(), "sched-1")

	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", schedule.StartDate)
	require.NotNil(t, schedule.DayOfWeek)
	assert.Equal(t, 1, *schedule.DayOfWeek)
	assert.Equal(t, []persistence.Assignee{{WorkerID: "bob", WorkerKind: "staff"}}, schedule.Assignees)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildListQuery(t *testing.T) {
	query, args := buildListQuery(persistence.ScheduleFilter{
		ClientID: "client-1",
		Assignee: &persistence.Assignee{WorkerID: "alice", WorkerKind: "staff"},
		Statuses: []string{"active"},
	})

	assert.Contains(t, query, "JOIN schedule_assignees sa")
	assert.Contains(t, query, "sa.worker_id = $1 AND sa.worker_kind = $2")
	assert.Contains(t, query, "s.client_id = $3")
	assert.Contains(t, query, "s.status = ANY($4)")
	assert.Len(t, args, 4)

	query, args = buildListQuery(persistence.ScheduleFilter{})
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)
}

func TestSiteAndPinUpserts(t *testing.T) {
	_, mock, storage := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectExec(`(?s)INSERT INTO client_sites .+ ON CONFLICT \(client_id\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO organization_pin .+ ON CONFLICT \(id\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT pin_hash, updated_by, updated_at FROM organization_pin`).
		WillReturnError(sql.ErrNoRows)

	require.NoError(t, storage.Sites.UpsertSite(ctx, persistence.ClientSite{ClientID: "client-1", Latitude: 1, Longitude: 2}))
	require.NoError(t, storage.Pins.SetPin(ctx, persistence.OrganizationPin{Hash: "$argon2id$...", UpdatedBy: "admin-1"}))

	_, err := storage.Pins.GetPin(ctx)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
