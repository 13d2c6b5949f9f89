package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/example/fieldops/internal/persistence"
)

const shiftColumns = `id, worker_id, worker_kind, client_id, schedule_id, check_in_at, check_out_at,
	check_in_latitude, check_in_longitude, check_out_latitude, check_out_longitude,
	check_in_distance_miles, check_out_distance_miles, pin_override_used, message, photo_urls`

// ShiftRepository implements persistence.ShiftRepository on PostgreSQL. The
// partial unique index shift_records_one_open keeps one open shift per worker.
type ShiftRepository struct {
	db *sql.DB
}

func (r *ShiftRepository) CreateOpenShift(ctx context.Context, shift persistence.ShiftRecord) error {
	if shift.ID == "" || shift.WorkerID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shift_records (id, worker_id, worker_kind, client_id, schedule_id, check_in_at,
			check_in_latitude, check_in_longitude, check_in_distance_miles, pin_override_used, message, photo_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		shift.ID, shift.WorkerID, shift.WorkerKind, shift.ClientID, nullString(shift.ScheduleID),
		shift.CheckInAt.UTC(), shift.CheckInLatitude, shift.CheckInLongitude, shift.CheckInDistanceMiles,
		shift.PinOverrideUsed, shift.Message, pq.Array(nonNil(shift.PhotoURLs)),
	)
	return mapError(err)
}

func (r *ShiftRepository) GetOpenShift(ctx context.Context, workerID, workerKind string) (persistence.ShiftRecord, error) {
	shift, err := scanShift(r.db.QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM shift_records
		WHERE worker_id = $1 AND worker_kind = $2 AND check_out_at IS NULL`, workerID, workerKind))
	if err != nil {
		return persistence.ShiftRecord{}, mapError(err)
	}
	return shift, nil
}

func (r *ShiftRepository) GetShift(ctx context.Context, id string) (persistence.ShiftRecord, error) {
	shift, err := scanShift(r.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shift_records WHERE id = $1`, id))
	if err != nil {
		return persistence.ShiftRecord{}, mapError(err)
	}
	return shift, nil
}

// CloseShift closes an open shift owned by the worker in a single statement.
func (r *ShiftRepository) CloseShift(ctx context.Context, closure persistence.ShiftClosure) (persistence.ShiftRecord, error) {
	shift, err := scanShift(r.db.QueryRowContext(ctx, `
		UPDATE shift_records
		SET check_out_at = $1, check_out_latitude = $2, check_out_longitude = $3,
			check_out_distance_miles = $4, pin_override_used = $5, message = $6, photo_urls = $7
		WHERE id = $8 AND worker_id = $9 AND worker_kind = $10 AND check_out_at IS NULL
		RETURNING `+shiftColumns,
		closure.CheckOutAt.UTC(), closure.Latitude, closure.Longitude, closure.DistanceMiles,
		closure.PinOverrideUsed, closure.Message, pq.Array(nonNil(closure.PhotoURLs)),
		closure.ID, closure.WorkerID, closure.WorkerKind,
	))
	if err != nil {
		return persistence.ShiftRecord{}, mapError(err)
	}
	return shift, nil
}

func (r *ShiftRepository) ListOpenShifts(ctx context.Context) ([]persistence.ShiftRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+shiftColumns+` FROM shift_records
		WHERE check_out_at IS NULL ORDER BY check_in_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var shifts []persistence.ShiftRecord
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, mapError(err)
		}
		shifts = append(shifts, shift)
	}
	return shifts, mapError(rows.Err())
}

func scanShift(row rowScanner) (persistence.ShiftRecord, error) {
	var (
		shift                    persistence.ShiftRecord
		scheduleID               sql.NullString
		checkOutAt               sql.NullTime
		checkOutLat, checkOutLng sql.NullFloat64
		checkOutDistance         sql.NullFloat64
		photos                   []string
	)
	err := row.Scan(
		&shift.ID,
		&shift.WorkerID,
		&shift.WorkerKind,
		&shift.ClientID,
		&scheduleID,
		&shift.CheckInAt,
		&checkOutAt,
		&shift.CheckInLatitude,
		&shift.CheckInLongitude,
		&checkOutLat,
		&checkOutLng,
		&shift.CheckInDistanceMiles,
		&checkOutDistance,
		&shift.PinOverrideUsed,
		&shift.Message,
		pq.Array(&photos),
	)
	if err != nil {
		return persistence.ShiftRecord{}, err
	}

	shift.CheckInAt = shift.CheckInAt.UTC()
	if scheduleID.Valid {
		shift.ScheduleID = &scheduleID.String
	}
	if checkOutAt.Valid {
		t := checkOutAt.Time.UTC()
		shift.CheckOutAt = &t
	}
	if checkOutLat.Valid {
		shift.CheckOutLatitude = &checkOutLat.Float64
	}
	if checkOutLng.Valid {
		shift.CheckOutLongitude = &checkOutLng.Float64
	}
	if checkOutDistance.Valid {
		shift.CheckOutDistanceMiles = &checkOutDistance.Float64
	}
	shift.PhotoURLs = photos
	return shift, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
