package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/fieldops/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationDir is the directory of the embedded schema migrations.
const MigrationDir = "migrations"

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger

	Schedules *ScheduleRepository
	Shifts    *ShiftRepository
	Sites     *SiteRepository
	Pins      *PinRepository
}

// Open connects to the SQLite database described by config. Call Migrate
// before using the repositories on a fresh database.
func Open(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", config.DSN, err)
	}

	return &Storage{
		pool:      pool,
		logger:    logger,
		Schedules: NewScheduleRepository(pool),
		Shifts:    NewShiftRepository(pool),
		Sites:     NewSiteRepository(pool),
		Pins:      NewPinRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationFiles,
		migration.DefaultMigrationConfig(MigrationDir),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
