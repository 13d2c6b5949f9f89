package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/fieldops/internal/persistence"
)

const shiftColumns = `id, worker_id, worker_kind, client_id, schedule_id, check_in_at, check_out_at,
	check_in_latitude, check_in_longitude, check_out_latitude, check_out_longitude,
	check_in_distance_miles, check_out_distance_miles, pin_override_used, message, photo_urls`

// ShiftRepository implements persistence.ShiftRepository using SQLite. The
// single-open-shift rule is enforced by a partial unique index on
// (worker_id, worker_kind) WHERE check_out_at IS NULL.
type ShiftRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewShiftRepository creates a new SQLite shift repository
func NewShiftRepository(pool *ConnectionPool) *ShiftRepository {
	return &ShiftRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateOpenShift inserts a shift without a check-out. It returns
// persistence.ErrOpenShiftExists when the worker already has an open shift.
func (r *ShiftRepository) CreateOpenShift(ctx context.Context, shift persistence.ShiftRecord) error {
	if shift.ID == "" || shift.WorkerID == "" {
		return persistence.ErrConstraintViolation
	}

	photos, err := encodePhotoURLs(shift.PhotoURLs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO shift_records (id, worker_id, worker_kind, client_id, schedule_id, check_in_at,
			check_in_latitude, check_in_longitude, check_in_distance_miles, pin_override_used, message, photo_urls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			shift.ID,
			shift.WorkerID,
			shift.WorkerKind,
			shift.ClientID,
			nullString(shift.ScheduleID),
			formatTime(shift.CheckInAt),
			shift.CheckInLatitude,
			shift.CheckInLongitude,
			shift.CheckInDistanceMiles,
			boolToInt(shift.PinOverrideUsed),
			shift.Message,
			photos,
		)
		return err
	})
}

// GetOpenShift returns the worker's open shift or persistence.ErrNotFound
func (r *ShiftRepository) GetOpenShift(ctx context.Context, workerID, workerKind string) (persistence.ShiftRecord, error) {
	query := `SELECT ` + shiftColumns + ` FROM shift_records
		WHERE worker_id = ? AND worker_kind = ? AND check_out_at IS NULL`

	shift, err := scanShift(r.helper.QueryRow(ctx, query, workerID, workerKind))
	if err != nil {
		return persistence.ShiftRecord{}, r.mapper.MapError(err)
	}
	return shift, nil
}

// GetShift returns a shift by ID
func (r *ShiftRepository) GetShift(ctx context.Context, id string) (persistence.ShiftRecord, error) {
	shift, err := scanShift(r.helper.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shift_records WHERE id = ?`, id))
	if err != nil {
		return persistence.ShiftRecord{}, r.mapper.MapError(err)
	}
	return shift, nil
}

// CloseShift records the check-out on an open shift owned by the worker and
// returns the updated record. A missing or already closed shift yields
// persistence.ErrNotFound.
func (r *ShiftRepository) CloseShift(ctx context.Context, closure persistence.ShiftClosure) (persistence.ShiftRecord, error) {
	photos, err := encodePhotoURLs(closure.PhotoURLs)
	if err != nil {
		return persistence.ShiftRecord{}, err
	}

	var closed persistence.ShiftRecord
	err = r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE shift_records
			SET check_out_at = ?, check_out_latitude = ?, check_out_longitude = ?,
				check_out_distance_miles = ?, pin_override_used = ?, message = ?, photo_urls = ?
			WHERE id = ? AND worker_id = ? AND worker_kind = ? AND check_out_at IS NULL
		`

		result, err := r.helper.ExecTx(ctx, tx, query,
			formatTime(closure.CheckOutAt),
			closure.Latitude,
			closure.Longitude,
			closure.DistanceMiles,
			boolToInt(closure.PinOverrideUsed),
			closure.Message,
			photos,
			closure.ID,
			closure.WorkerID,
			closure.WorkerKind,
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

		closed, err = scanShift(r.helper.QueryRowTx(ctx, tx, `SELECT `+shiftColumns+` FROM shift_records WHERE id = ?`, closure.ID))
		return r.mapper.MapError(err)
	})
	if err != nil {
		return persistence.ShiftRecord{}, err
	}
	return closed, nil
}

// ListOpenShifts returns every shift without a check-out, oldest first
func (r *ShiftRepository) ListOpenShifts(ctx context.Context) ([]persistence.ShiftRecord, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+shiftColumns+` FROM shift_records
		WHERE check_out_at IS NULL ORDER BY check_in_at ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var shifts []persistence.ShiftRecord
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return shifts, nil
}

func scanShift(row rowScanner) (persistence.ShiftRecord, error) {
	var (
		shift                    persistence.ShiftRecord
		scheduleID, checkOutAt   sql.NullString
		checkOutLat, checkOutLng sql.NullFloat64
		checkOutDistance         sql.NullFloat64
		checkInAt, photos        string
		pinOverride              int
	)

	err := row.Scan(
		&shift.ID,
		&shift.WorkerID,
		&shift.WorkerKind,
		&shift.ClientID,
		&scheduleID,
		&checkInAt,
		&checkOutAt,
		&shift.CheckInLatitude,
		&shift.CheckInLongitude,
		&checkOutLat,
		&checkOutLng,
		&shift.CheckInDistanceMiles,
		&checkOutDistance,
		&pinOverride,
		&shift.Message,
		&photos,
	)
	if err != nil {
		return persistence.ShiftRecord{}, err
	}

	if scheduleID.Valid {
		shift.ScheduleID = &scheduleID.String
	}
	if shift.CheckInAt, err = parseTime("check_in_at", checkInAt); err != nil {
		return persistence.ShiftRecord{}, err
	}
	if checkOutAt.Valid {
		t, err := parseTime("check_out_at", checkOutAt.String)
		if err != nil {
			return persistence.ShiftRecord{}, err
		}
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
	shift.PinOverrideUsed = pinOverride != 0

	if err := json.Unmarshal([]byte(photos), &shift.PhotoURLs); err != nil {
		return persistence.ShiftRecord{}, fmt.Errorf("failed to parse photo_urls: %w", err)
	}

	return shift, nil
}

func encodePhotoURLs(urls []string) (string, error) {
	if len(urls) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("failed to encode photo_urls: %w", err)
	}
	return string(data), nil
}
