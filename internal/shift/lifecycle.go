package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/logging"
)

// DefaultRadiusMiles is the geofence radius applied when a policy leaves a
// radius unset.
const DefaultRadiusMiles = 1.0

// Store persists shift records. CreateOpen and Close must each be a single
// atomic check-and-write: CreateOpen fails with ErrConflict when the worker
// already has an open record, Close fails with ErrNoActiveShift when the
// record is no longer open.
type Store interface {
	OpenShift(ctx context.Context, session Session) (Record, error)
	CreateOpen(ctx context.Context, record Record) (Record, error)
	Close(ctx context.Context, closure Closure) (Record, error)
}

// SiteLocator resolves the coordinates of a client site.
type SiteLocator interface {
	SiteFor(ctx context.Context, clientID string) (geo.Coordinate, error)
}

// PinVerifier validates a manager PIN for an out-of-range check-out.
type PinVerifier interface {
	VerifyPin(ctx context.Context, session Session, pin string) (bool, error)
}

// EventType names a lifecycle event.
type EventType string

const (
	EventCheckedIn  EventType = "shift.checked_in"
	EventCheckedOut EventType = "shift.checked_out"
)

// Event is emitted after a transition has been committed.
type Event struct {
	Type       EventType
	Record     Record
	Verdict    geo.Verdict
	OccurredAt time.Time
}

// Publisher receives committed lifecycle events. Publish failures never undo
// a transition.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Observer receives geofence verdicts and transition outcomes for metrics.
type Observer interface {
	ObserveGeofence(operation string, verdict geo.Verdict)
	ObserveTransition(operation, outcome string)
}

// Policy holds the geofence radii for each transition.
type Policy struct {
	CheckInRadiusMiles  float64
	CheckOutRadiusMiles float64
}

func (p Policy) withDefaults() Policy {
	if p.CheckInRadiusMiles <= 0 {
		p.CheckInRadiusMiles = DefaultRadiusMiles
	}
	if p.CheckOutRadiusMiles <= 0 {
		p.CheckOutRadiusMiles = DefaultRadiusMiles
	}
	return p
}

// Dependencies wires the collaborators of a Lifecycle. Store and Sites are
// required; the remaining fields fall back to no-op or default values.
type Dependencies struct {
	Store       Store
	Sites       SiteLocator
	Pins        PinVerifier
	Publisher   Publisher
	Observer    Observer
	Policy      Policy
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// Lifecycle drives shift records through check-in and check-out. It holds no
// locks; the single-open-shift invariant is enforced by the Store.
type Lifecycle struct {
	store       Store
	sites       SiteLocator
	pins        PinVerifier
	publisher   Publisher
	observer    Observer
	policy      Policy
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLifecycle constructs a Lifecycle from its dependencies.
func NewLifecycle(deps Dependencies) *Lifecycle {
	l := &Lifecycle{
		store:       deps.Store,
		sites:       deps.Sites,
		pins:        deps.Pins,
		publisher:   deps.Publisher,
		observer:    deps.Observer,
		policy:      deps.Policy.withDefaults(),
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      deps.Logger,
	}
	if l.idGenerator == nil {
		l.idGenerator = func() string { return "" }
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.observer == nil {
		l.observer = nopObserver{}
	}
	return l
}

// Policy returns the effective geofence policy.
func (l *Lifecycle) Policy() Policy {
	return l.policy
}

// CheckIn opens a shift for the session at the client's site.
//
// The worker must be within the check-in radius; a failed geofence check
// returns *DistanceError and is never PIN-overridable. A worker with an open
// shift gets ErrConflict, both from the pre-check and from the store when two
// check-ins race.
func (l *Lifecycle) CheckIn(ctx context.Context, session Session, req CheckInRequest) (rec Record, err error) {
	if l == nil {
		return Record{}, fmt.Errorf("shift: lifecycle is nil")
	}
	logger := l.loggerFor(ctx, "check_in", session)
	defer func() { l.finish(ctx, logger, "check_in", err) }()

	if err := session.Validate(); err != nil {
		return Record{}, err
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return Record{}, fmt.Errorf("%w: client_id is required", ErrInvalidRequest)
	}
	if err := req.Location.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if _, err := l.store.OpenShift(ctx, session); err == nil {
		return Record{}, ErrConflict
	} else if !errors.Is(err, ErrNoActiveShift) {
		return Record{}, fmt.Errorf("shift: lookup open shift: %w", err)
	}

	site, err := l.sites.SiteFor(ctx, clientID)
	if err != nil {
		return Record{}, fmt.Errorf("shift: resolve site for client %s: %w", clientID, err)
	}

	verdict := geo.Evaluate(req.Location, site, l.policy.CheckInRadiusMiles)
	l.observer.ObserveGeofence("check_in", verdict)
	logger.InfoContext(ctx, "geofence evaluated",
		"client_id", clientID,
		"allowed", verdict.Allowed,
		"distance_miles", verdict.DistanceMiles,
		"radius_miles", verdict.RadiusMiles,
	)
	if !verdict.Allowed {
		return Record{}, &DistanceError{DistanceMiles: verdict.DistanceMiles, RadiusMiles: verdict.RadiusMiles}
	}

	record := Record{
		ID:                   l.idGenerator(),
		WorkerID:             session.WorkerID,
		WorkerKind:           session.WorkerKind,
		ClientID:             clientID,
		ScheduleID:           cloneString(req.ScheduleID),
		CheckInAt:            l.now(),
		CheckInLocation:      req.Location,
		CheckInDistanceMiles: verdict.DistanceMiles,
	}

	created, err := l.store.CreateOpen(ctx, record)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Record{}, ErrConflict
		}
		return Record{}, fmt.Errorf("shift: create open shift: %w", err)
	}

	l.publish(ctx, logger, Event{Type: EventCheckedIn, Record: created, Verdict: verdict, OccurredAt: created.CheckInAt})
	return created, nil
}

// CheckOut closes the session's open shift.
//
// Inside the check-out radius the shift closes directly. Outside it, a
// request without a PIN returns *PinRequiredError and leaves the shift open;
// a request with a PIN is verified and, when valid, closes the shift with
// PinOverrideUsed set. An invalid PIN returns ErrInvalidPin.
func (l *Lifecycle) CheckOut(ctx context.Context, session Session, req CheckOutRequest) (rec Record, err error) {
	if l == nil {
		return Record{}, fmt.Errorf("shift: lifecycle is nil")
	}
	logger := l.loggerFor(ctx, "check_out", session)
	defer func() { l.finish(ctx, logger, "check_out", err) }()

	if err := session.Validate(); err != nil {
		return Record{}, err
	}
	if err := req.Location.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	open, err := l.store.OpenShift(ctx, session)
	if err != nil {
		if errors.Is(err, ErrNoActiveShift) {
			return Record{}, ErrNoActiveShift
		}
		return Record{}, fmt.Errorf("shift: lookup open shift: %w", err)
	}

	site, err := l.sites.SiteFor(ctx, open.ClientID)
	if err != nil {
		return Record{}, fmt.Errorf("shift: resolve site for client %s: %w", open.ClientID, err)
	}

	verdict := geo.Evaluate(req.Location, site, l.policy.CheckOutRadiusMiles)
	l.observer.ObserveGeofence("check_out", verdict)
	logger.InfoContext(ctx, "geofence evaluated",
		"shift_id", open.ID,
		"client_id", open.ClientID,
		"allowed", verdict.Allowed,
		"distance_miles", verdict.DistanceMiles,
		"radius_miles", verdict.RadiusMiles,
	)

	override := false
	if !verdict.Allowed {
		pin := strings.TrimSpace(req.Pin)
		if pin == "" {
			return Record{}, &PinRequiredError{DistanceMiles: verdict.DistanceMiles, RadiusMiles: verdict.RadiusMiles}
		}
		if l.pins == nil {
			return Record{}, ErrInvalidPin
		}
		ok, err := l.pins.VerifyPin(ctx, session, pin)
		if err != nil {
			return Record{}, err
		}
		if !ok {
			return Record{}, ErrInvalidPin
		}
		override = true
		logger.WarnContext(ctx, "check-out outside geofence approved by manager pin",
			"shift_id", open.ID,
			"distance_miles", verdict.DistanceMiles,
		)
	}

	closed, err := l.store.Close(ctx, Closure{
		RecordID:        open.ID,
		Session:         session,
		CheckOutAt:      l.now(),
		Location:        req.Location,
		DistanceMiles:   verdict.DistanceMiles,
		PinOverrideUsed: override,
		Message:         strings.TrimSpace(req.Message),
		PhotoURLs:       cleanURLs(req.PhotoURLs),
	})
	if err != nil {
		if errors.Is(err, ErrNoActiveShift) {
			return Record{}, ErrNoActiveShift
		}
		return Record{}, fmt.Errorf("shift: close shift %s: %w", open.ID, err)
	}

	occurredAt := closed.CheckInAt
	if closed.CheckOutAt != nil {
		occurredAt = *closed.CheckOutAt
	}
	l.publish(ctx, logger, Event{Type: EventCheckedOut, Record: closed, Verdict: verdict, OccurredAt: occurredAt})
	return closed, nil
}

// Status reports whether the session currently holds an open shift.
func (l *Lifecycle) Status(ctx context.Context, session Session) (Status, error) {
	if l == nil {
		return Status{}, fmt.Errorf("shift: lifecycle is nil")
	}
	if err := session.Validate(); err != nil {
		return Status{}, err
	}

	open, err := l.store.OpenShift(ctx, session)
	if err != nil {
		if errors.Is(err, ErrNoActiveShift) {
			return Status{State: StateNotCheckedIn}, nil
		}
		return Status{}, fmt.Errorf("shift: lookup open shift: %w", err)
	}
	return Status{State: StateCheckedIn, Shift: &open}, nil
}

func (l *Lifecycle) publish(ctx context.Context, logger *slog.Logger, event Event) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to publish shift event",
			"event_type", string(event.Type),
			"shift_id", event.Record.ID,
			"error", err,
		)
	}
}

func (l *Lifecycle) finish(ctx context.Context, logger *slog.Logger, operation string, err error) {
	outcome := Kind(err)
	l.observer.ObserveTransition(operation, outcome)
	switch outcome {
	case "ok":
		logger.InfoContext(ctx, "shift transition completed")
	case "error":
		logger.ErrorContext(ctx, "shift transition failed", "error", err)
	default:
		logger.WarnContext(ctx, "shift transition refused", "reason", outcome, "error", err)
	}
}

func (l *Lifecycle) loggerFor(ctx context.Context, operation string, session Session) *slog.Logger {
	return logging.FromContextOr(ctx, l.logger).With(
		"component", "shift_lifecycle",
		"operation", operation,
		"worker_id", session.WorkerID,
		"worker_kind", string(session.WorkerKind),
	)
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cleanURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type nopObserver struct{}

func (nopObserver) ObserveGeofence(string, geo.Verdict) {}
func (nopObserver) ObserveTransition(string, string)    {}
