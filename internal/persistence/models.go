package persistence

import "time"

// Assignee links a worker to a schedule definition.
type Assignee struct {
	WorkerID   string
	WorkerKind string
}

// ScheduleDefinition is a stored recurring or one-time visit template.
// StartDate is a civil YYYY-MM-DD date; StartTime and EndTime are HH:MM[:SS].
type ScheduleDefinition struct {
	ID             string
	ClientID       string
	Title          string
	RecurrenceType string
	StartDate      string
	DayOfWeek      *int
	StartTime      string
	EndTime        string
	Status         string
	Assignees      []Assignee
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ClientSite holds the coordinates check-ins are measured against.
type ClientSite struct {
	ClientID  string
	Name      string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShiftRecord is a stored shift. CheckOutAt is nil while the shift is open.
type ShiftRecord struct {
	ID                    string
	WorkerID              string
	WorkerKind            string
	ClientID              string
	ScheduleID            *string
	CheckInAt             time.Time
	CheckOutAt            *time.Time
	CheckInLatitude       float64
	CheckInLongitude      float64
	CheckOutLatitude      *float64
	CheckOutLongitude     *float64
	CheckInDistanceMiles  float64
	CheckOutDistanceMiles *float64
	PinOverrideUsed       bool
	Message               string
	PhotoURLs             []string
}

// ShiftClosure carries the check-out fields applied to an open shift.
type ShiftClosure struct {
	ID              string
	WorkerID        string
	WorkerKind      string
	CheckOutAt      time.Time
	Latitude        float64
	Longitude       float64
	DistanceMiles   float64
	PinOverrideUsed bool
	Message         string
	PhotoURLs       []string
}

// OrganizationPin is the single organisation-wide manager PIN hash.
type OrganizationPin struct {
	Hash      string
	UpdatedBy string
	UpdatedAt time.Time
}
