// Package shift implements the check-in/check-out state machine for field
// workers, including geofence gating and the manager PIN override.
package shift

import (
	"strings"
	"time"

	"github.com/example/fieldops/internal/geo"
)

// WorkerKind distinguishes the two populations that can hold shifts.
type WorkerKind string

const (
	WorkerKindStaff WorkerKind = "staff"
	WorkerKindAdmin WorkerKind = "admin"
)

// ParseWorkerKind validates a textual worker kind.
func ParseWorkerKind(value string) (WorkerKind, bool) {
	kind := WorkerKind(strings.ToLower(strings.TrimSpace(value)))
	return kind, kind.Valid()
}

// Valid reports whether k is a known worker kind.
func (k WorkerKind) Valid() bool {
	return k == WorkerKindStaff || k == WorkerKindAdmin
}

// Session identifies the acting worker. It is passed explicitly into every
// operation and never read from ambient state.
type Session struct {
	WorkerID   string
	WorkerKind WorkerKind
}

// Validate checks that the session names a worker of a known kind.
func (s Session) Validate() error {
	if strings.TrimSpace(s.WorkerID) == "" || !s.WorkerKind.Valid() {
		return ErrInvalidSession
	}
	return nil
}

// IsAdmin reports whether the session belongs to an administrator.
func (s Session) IsAdmin() bool {
	return s.WorkerKind == WorkerKindAdmin
}

// State is the externally visible shift state for a worker.
type State string

const (
	StateNotCheckedIn State = "not_checked_in"
	StateCheckedIn    State = "checked_in"
	StateCheckedOut   State = "checked_out"
	// StatePinPending is transient: a check-out was refused pending a manager
	// PIN. It is never persisted and is reported only via *PinRequiredError.
	StatePinPending State = "pin_pending"
)

// Record is a single shift from check-in to check-out.
type Record struct {
	ID                    string
	WorkerID              string
	WorkerKind            WorkerKind
	ClientID              string
	ScheduleID            *string
	CheckInAt             time.Time
	CheckOutAt            *time.Time
	CheckInLocation       geo.Coordinate
	CheckOutLocation      *geo.Coordinate
	CheckInDistanceMiles  float64
	CheckOutDistanceMiles *float64
	PinOverrideUsed       bool
	Message               string
	PhotoURLs             []string
}

// Open reports whether the record has not been checked out.
func (r Record) Open() bool {
	return r.CheckOutAt == nil
}

// State returns the per-record state.
func (r Record) State() State {
	if r.Open() {
		return StateCheckedIn
	}
	return StateCheckedOut
}

// Session returns the session that owns the record.
func (r Record) Session() Session {
	return Session{WorkerID: r.WorkerID, WorkerKind: r.WorkerKind}
}

// Closure carries the fields written when a shift is checked out.
type Closure struct {
	RecordID        string
	Session         Session
	CheckOutAt      time.Time
	Location        geo.Coordinate
	DistanceMiles   float64
	PinOverrideUsed bool
	Message         string
	PhotoURLs       []string
}

// CheckInRequest is the caller supplied input for CheckIn.
type CheckInRequest struct {
	ClientID   string
	ScheduleID *string
	Location   geo.Coordinate
}

// CheckOutRequest is the caller supplied input for CheckOut. Pin is only
// consulted when the geofence check fails.
type CheckOutRequest struct {
	Location  geo.Coordinate
	Message   string
	PhotoURLs []string
	Pin       string
}

// Status describes where a worker currently is in the lifecycle.
type Status struct {
	State State
	Shift *Record
}
