package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/persistence"
	"github.com/example/fieldops/internal/shift"
)

// ShiftStore adapts a persistence.ShiftRepository to shift.Store and to the
// calendar's open shift listing.
type ShiftStore struct {
	repo persistence.ShiftRepository
}

// NewShiftStore wraps repo.
func NewShiftStore(repo persistence.ShiftRepository) *ShiftStore {
	return &ShiftStore{repo: repo}
}

// OpenShift returns the session's open shift or shift.ErrNoActiveShift.
func (s *ShiftStore) OpenShift(ctx context.Context, session shift.Session) (shift.Record, error) {
	model, err := s.repo.GetOpenShift(ctx, session.WorkerID, string(session.WorkerKind))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return shift.Record{}, shift.ErrNoActiveShift
		}
		return shift.Record{}, err
	}
	return toShiftRecord(model), nil
}

// CreateOpen inserts an open shift; a concurrent open shift maps to shift.ErrConflict.
func (s *ShiftStore) CreateOpen(ctx context.Context, record shift.Record) (shift.Record, error) {
	if err := s.repo.CreateOpenShift(ctx, toPersistenceShift(record)); err != nil {
		if errors.Is(err, persistence.ErrOpenShiftExists) {
			return shift.Record{}, shift.ErrConflict
		}
		return shift.Record{}, err
	}
	return record, nil
}

// Close checks the shift out; a shift that is no longer open maps to shift.ErrNoActiveShift.
func (s *ShiftStore) Close(ctx context.Context, closure shift.Closure) (shift.Record, error) {
	model, err := s.repo.CloseShift(ctx, persistence.ShiftClosure{
		ID:              closure.RecordID,
		WorkerID:        closure.Session.WorkerID,
		WorkerKind:      string(closure.Session.WorkerKind),
		CheckOutAt:      closure.CheckOutAt,
		Latitude:        closure.Location.Latitude,
		Longitude:       closure.Location.Longitude,
		DistanceMiles:   closure.DistanceMiles,
		PinOverrideUsed: closure.PinOverrideUsed,
		Message:         closure.Message,
		PhotoURLs:       closure.PhotoURLs,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return shift.Record{}, shift.ErrNoActiveShift
		}
		return shift.Record{}, err
	}
	return toShiftRecord(model), nil
}

// Get returns a shift by id. Staff may only read their own shifts.
func (s *ShiftStore) Get(ctx context.Context, session shift.Session, id string) (shift.Record, error) {
	if err := session.Validate(); err != nil {
		return shift.Record{}, ErrUnauthorized
	}
	model, err := s.repo.GetShift(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return shift.Record{}, ErrNotFound
		}
		return shift.Record{}, err
	}
	record := toShiftRecord(model)
	if !session.IsAdmin() && record.Session() != session {
		return shift.Record{}, ErrUnauthorized
	}
	return record, nil
}

// ListOpen returns every open shift.
func (s *ShiftStore) ListOpen(ctx context.Context) ([]shift.Record, error) {
	models, err := s.repo.ListOpenShifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open shifts: %w", err)
	}
	out := make([]shift.Record, 0, len(models))
	for _, model := range models {
		out = append(out, toShiftRecord(model))
	}
	return out, nil
}

func toShiftRecord(model persistence.ShiftRecord) shift.Record {
	record := shift.Record{
		ID:                    model.ID,
		WorkerID:              model.WorkerID,
		WorkerKind:            shift.WorkerKind(model.WorkerKind),
		ClientID:              model.ClientID,
		ScheduleID:            model.ScheduleID,
		CheckInAt:             model.CheckInAt,
		CheckOutAt:            model.CheckOutAt,
		CheckInLocation:       geo.Coordinate{Latitude: model.CheckInLatitude, Longitude: model.CheckInLongitude},
		CheckInDistanceMiles:  model.CheckInDistanceMiles,
		CheckOutDistanceMiles: model.CheckOutDistanceMiles,
		PinOverrideUsed:       model.PinOverrideUsed,
		Message:               model.Message,
		PhotoURLs:             model.PhotoURLs,
	}
	if model.CheckOutLatitude != nil && model.CheckOutLongitude != nil {
		record.CheckOutLocation = &geo.Coordinate{Latitude: *model.CheckOutLatitude, Longitude: *model.CheckOutLongitude}
	}
	return record
}

func toPersistenceShift(record shift.Record) persistence.ShiftRecord {
	model := persistence.ShiftRecord{
		ID:                    record.ID,
		WorkerID:              record.WorkerID,
		WorkerKind:            string(record.WorkerKind),
		ClientID:              record.ClientID,
		ScheduleID:            record.ScheduleID,
		CheckInAt:             record.CheckInAt,
		CheckOutAt:            record.CheckOutAt,
		CheckInLatitude:       record.CheckInLocation.Latitude,
		CheckInLongitude:      record.CheckInLocation.Longitude,
		CheckInDistanceMiles:  record.CheckInDistanceMiles,
		CheckOutDistanceMiles: record.CheckOutDistanceMiles,
		PinOverrideUsed:       record.PinOverrideUsed,
		Message:               record.Message,
		PhotoURLs:             record.PhotoURLs,
	}
	if record.CheckOutLocation != nil {
		lat, lng := record.CheckOutLocation.Latitude, record.CheckOutLocation.Longitude
		model.CheckOutLatitude = &lat
		model.CheckOutLongitude = &lng
	}
	return model
}

var _ shift.Store = (*ShiftStore)(nil)
