package persistence

import "context"

// ScheduleFilter narrows schedule queries. Zero values mean "no filter".
type ScheduleFilter struct {
	ClientID string
	Assignee *Assignee
	Statuses []string
}

// ScheduleRepository stores schedule definitions and their assignees.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule ScheduleDefinition) error
	UpdateSchedule(ctx context.Context, schedule ScheduleDefinition) error
	GetSchedule(ctx context.Context, id string) (ScheduleDefinition, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]ScheduleDefinition, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// ShiftRepository stores shift records.
//
// CreateOpenShift returns ErrOpenShiftExists when the worker already has an
// open shift; the check is enforced by the store, not by the caller.
// CloseShift returns ErrNotFound when the shift is missing or already closed.
type ShiftRepository interface {
	CreateOpenShift(ctx context.Context, shift ShiftRecord) error
	GetOpenShift(ctx context.Context, workerID, workerKind string) (ShiftRecord, error)
	GetShift(ctx context.Context, id string) (ShiftRecord, error)
	CloseShift(ctx context.Context, closure ShiftClosure) (ShiftRecord, error)
	ListOpenShifts(ctx context.Context) ([]ShiftRecord, error)
}

// SiteRepository stores client site coordinates.
type SiteRepository interface {
	UpsertSite(ctx context.Context, site ClientSite) error
	GetSite(ctx context.Context, clientID string) (ClientSite, error)
}

// PinRepository stores the organisation manager PIN hash.
type PinRepository interface {
	SetPin(ctx context.Context, pin OrganizationPin) error
	GetPin(ctx context.Context) (OrganizationPin, error)
}
