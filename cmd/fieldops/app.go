package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/auth"
	"github.com/example/fieldops/internal/calendar"
	"github.com/example/fieldops/internal/config"
	"github.com/example/fieldops/internal/events"
	httptransport "github.com/example/fieldops/internal/http"
	"github.com/example/fieldops/internal/kv"
	"github.com/example/fieldops/internal/observability"
	"github.com/example/fieldops/internal/persistence"
	"github.com/example/fieldops/internal/persistence/postgres"
	"github.com/example/fieldops/internal/persistence/sqlite"
	"github.com/example/fieldops/internal/persistence/sqlite/migration"
	"github.com/example/fieldops/internal/recurrence"
	"github.com/example/fieldops/internal/shift"
)

// app is the fully wired service. Close releases the store, the Redis client
// and the Kafka writer in reverse order of creation.
type app struct {
	Handler http.Handler
	Tokens  *auth.Tokens

	closers []func() error
	logger  *slog.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

// repositories is the backend-neutral view of the configured store.
type repositories struct {
	schedules persistence.ScheduleRepository
	shifts    persistence.ShiftRepository
	sites     persistence.SiteRepository
	pins      persistence.PinRepository
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	repos, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	attempts, closeCounter, err := newAttemptCounter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeCounter)

	publisher := newPublisher(cfg, logger)
	a.closers = append(a.closers, publisher.Close)

	tokens, err := auth.NewTokens(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.TokenTTL}, time.Now)
	if err != nil {
		return nil, err
	}
	a.Tokens = tokens

	now := time.Now
	scheduleStore := application.NewScheduleStore(repos.schedules)
	siteStore := application.NewSiteStore(repos.sites)
	shiftStore := application.NewShiftStore(repos.shifts)

	scheduleService := application.NewScheduleServiceWithLogger(scheduleStore, siteStore, uuid.NewString, now, logger)
	siteService := application.NewSiteService(siteStore, now, logger)
	pinService := application.NewPinService(
		application.NewPinStore(repos.pins),
		attempts,
		application.PinPolicy{MaxAttempts: cfg.PinMaxAttempts, LockoutWindow: cfg.PinLockout},
		now,
		logger,
	)
	pinService.SetLockoutHook(observability.RecordPinLockout)

	materializer := calendar.NewMaterializer(recurrence.NewExpander(cfg.Location), shiftStore, cfg.CalendarHorizonDays)
	calendarService := application.NewCalendarService(scheduleStore, materializer, now, logger)

	lifecycle := shift.NewLifecycle(shift.Dependencies{
		Store:     shiftStore,
		Sites:     siteService,
		Pins:      pinService,
		Publisher: publisher,
		Observer:  observability.ShiftObserver{},
		Policy: shift.Policy{
			CheckInRadiusMiles:  cfg.CheckInRadiusMiles,
			CheckOutRadiusMiles: cfg.CheckOutRadiusMiles,
		},
		IDGenerator: uuid.NewString,
		Now:         now,
		Logger:      logger,
	})

	a.Handler = httptransport.NewRouter(httptransport.RouterConfig{
		Shifts:       httptransport.NewShiftHandler(lifecycle, shiftStore, logger),
		Calendar:     httptransport.NewCalendarHandler(calendarService, logger),
		Schedules:    httptransport.NewScheduleHandler(scheduleService, logger),
		Sites:        httptransport.NewSiteHandler(siteService, logger),
		Pins:         httptransport.NewPinHandler(pinService, logger),
		Metrics:      promhttp.Handler(),
		Authenticate: httptransport.RequireSession(tokens, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger, observability.ObserveHTTPRequest),
		},
	})
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repositories, func() error, error) {
	switch cfg.Store {
	case config.StorePostgres:
		storage, err := postgres.Open(ctx, postgres.Config{DSN: cfg.PostgresDSN})
		if err != nil {
			return repositories{}, nil, err
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return repositories{}, nil, err
		}
		logger.Info("using postgres store")
		return repositories{
			schedules: storage.Schedules,
			shifts:    storage.Shifts,
			sites:     storage.Sites,
			pins:      storage.Pins,
		}, storage.Close, nil
	case config.StoreSQLite, "":
		storage, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
		if err != nil {
			return repositories{}, nil, err
		}
		if err := storage.Migrate(ctx); err != nil {
			_ = storage.Close()
			return repositories{}, nil, err
		}
		logger.Info("using sqlite store", "path", cfg.SQLitePath)
		return repositories{
			schedules: storage.Schedules,
			shifts:    storage.Shifts,
			sites:     storage.Sites,
			pins:      storage.Pins,
		}, storage.Close, nil
	default:
		return repositories{}, nil, fmt.Errorf("unsupported store %q", cfg.Store)
	}
}

// newAttemptCounter uses Redis when an address is configured so that PIN
// lockouts hold across instances, and an in-process counter otherwise.
func newAttemptCounter(ctx context.Context, cfg config.Config, logger *slog.Logger) (kv.Counter, func() error, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("redis not configured, pin lockouts are per process")
		return kv.NewMemoryCounter(nil), func() error { return nil }, nil
	}

	client := kv.NewClient(kv.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := kv.Ping(pingCtx, client); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return kv.NewRedisCounter(client, "fieldops:pin:"), client.Close, nil
}

type closingPublisher interface {
	shift.Publisher
	Close() error
}

func newPublisher(cfg config.Config, logger *slog.Logger) closingPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	logger.Info("publishing shift events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}
