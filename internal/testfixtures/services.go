package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/calendar"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

// ServiceFactory builds services that share a deterministic clock and
// identifier sequence.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Location    *time.Location
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocation sets the zone schedules are expanded in.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// NewScheduleService builds a schedule service over the given stores.
func (f *ServiceFactory) NewScheduleService(schedules application.ScheduleRepository, clients application.ClientDirectory) *application.ScheduleService {
	return application.NewScheduleServiceWithLogger(
		schedules,
		clients,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		f.Logger,
	)
}

// NewSiteService builds a site service over sites.
func (f *ServiceFactory) NewSiteService(sites application.SiteRepository) *application.SiteService {
	return application.NewSiteService(sites, f.Clock.NowFunc(), f.Logger)
}

// NewPinService builds a PIN service. A zero policy uses the service defaults.
func (f *ServiceFactory) NewPinService(pins application.PinRepository, attempts application.AttemptCounter, policy application.PinPolicy) *application.PinService {
	return application.NewPinService(pins, attempts, policy, f.Clock.NowFunc(), f.Logger)
}

// NewCalendarService builds a calendar service whose materializer joins open
// shifts from shifts.
func (f *ServiceFactory) NewCalendarService(schedules application.ScheduleRepository, shifts calendar.OpenShiftLister, horizonDays int) *application.CalendarService {
	materializer := calendar.NewMaterializer(recurrence.NewExpander(f.Location), shifts, horizonDays)
	return application.NewCalendarService(schedules, materializer, f.Clock.NowFunc(), f.Logger)
}

// LifecycleDeps captures the collaborators of a shift lifecycle. Clock,
// identifiers and logger come from the factory.
type LifecycleDeps struct {
	Store     shift.Store
	Sites     shift.SiteLocator
	Pins      shift.PinVerifier
	Publisher shift.Publisher
	Observer  shift.Observer
	Policy    shift.Policy
}

// NewLifecycle builds a shift lifecycle from deps.
func (f *ServiceFactory) NewLifecycle(deps LifecycleDeps) *shift.Lifecycle {
	return shift.NewLifecycle(shift.Dependencies{
		Store:       deps.Store,
		Sites:       deps.Sites,
		Pins:        deps.Pins,
		Publisher:   deps.Publisher,
		Observer:    deps.Observer,
		Policy:      deps.Policy,
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         f.Clock.NowFunc(),
		Logger:      f.Logger,
	})
}
