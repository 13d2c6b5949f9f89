package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// migrationManagerImpl implements the MigrationManager interface
type migrationManagerImpl struct {
	scanner  FileScanner
	executor Executor
	fsys     fs.FS
	config   MigrationConfig
	logger   *slog.Logger
}

// NewMigrationManager creates a MigrationManager reading files from
// config.MigrationDir inside fsys. A nil logger discards output.
func NewMigrationManager(scanner FileScanner, executor Executor, fsys fs.FS, config MigrationConfig, logger *slog.Logger) MigrationManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &migrationManagerImpl{
		scanner:  scanner,
		executor: executor,
		fsys:     fsys,
		config:   config,
		logger:   logger.With("component", "migration"),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *migrationManagerImpl) RunMigrations(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.InfoContext(ctx, "migrations disabled")
		return nil
	}

	startTime := time.Now()

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to initialize schema_migrations table", "error", err)
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	pendingMigrations, err := m.GetPendingMigrations(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to resolve pending migrations", "dir", m.config.MigrationDir, "error", err)
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pendingMigrations) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "pending", len(pendingMigrations))

	for i, migration := range pendingMigrations {
		logger := m.logger.With("version", migration.Version, "file", migration.FilePath)
		logger.InfoContext(ctx, "executing migration",
			"description", migration.Description,
			"position", i+1,
			"total", len(pendingMigrations),
		)

		executionTime, err := m.execute(ctx, migration)
		if err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}

		if err := m.executor.RecordMigration(ctx, migration, executionTime); err != nil {
			logger.ErrorContext(ctx, "failed to record migration", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath,
				"record migration", err)
		}

		logger.InfoContext(ctx, "migration applied", "duration", executionTime)
	}

	m.logger.InfoContext(ctx, "migrations complete",
		"applied", len(pendingMigrations),
		"duration", time.Since(startTime),
	)

	return nil
}

func (m *migrationManagerImpl) execute(ctx context.Context, migration Migration) (time.Duration, error) {
	if m.config.TimeoutPerFile > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.TimeoutPerFile)
		defer cancel()
	}

	started := time.Now()
	if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
		return 0, err
	}
	return time.Since(started), nil
}

// GetPendingMigrations returns list of migrations that need to be applied
func (m *migrationManagerImpl) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := m.scanner.ScanMigrations(m.fsys, m.config.MigrationDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateMigrationSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedByVersion[a.Version] = a
	}

	var pending []Migration
	for _, migration := range available {
		record, ok := appliedByVersion[migration.Version]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if m.config.VerifyChecksum && record.Checksum != "" && record.Checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: applied %s, file %s", ErrChecksumMismatch, record.Checksum, migration.Checksum))
		}
	}

	return pending, nil
}

// GetMigrationStatus returns status information about migrations
func (m *migrationManagerImpl) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	currentVersion := ""
	maxVersion := -1
	for _, a := range applied {
		if v := versionNumber(a.Version); v > maxVersion {
			maxVersion = v
			currentVersion = a.Version
		}
	}

	return &MigrationStatus{
		CurrentVersion:    currentVersion,
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}, nil
}

// validateMigrationSequence rejects gaps in the available versions and
// applied versions that no longer have a file.
func validateMigrationSequence(available []Migration, applied []AppliedMigration) error {
	availableVersions := make(map[int]bool, len(available))
	minVersion, maxVersion := 0, 0
	for i, migration := range available {
		v := versionNumber(migration.Version)
		if v < 0 {
			return NewMigrationError(migration.Version, migration.FilePath, "validate sequence",
				fmt.Errorf("%w: version '%s' is not numeric", ErrInvalidVersion, migration.Version))
		}
		availableVersions[v] = true
		if i == 0 || v < minVersion {
			minVersion = v
		}
		if v > maxVersion {
			maxVersion = v
		}
	}

	if len(available) > 0 {
		for v := minVersion; v <= maxVersion; v++ {
			if !availableVersions[v] {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, v)
			}
		}
	}

	for _, a := range applied {
		v := versionNumber(a.Version)
		if v < 0 {
			return NewDatabaseError(a.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version '%s' is not numeric", ErrVersionTableCorrupt, a.Version))
		}
		if !availableVersions[v] {
			return fmt.Errorf("%w: applied migration %03d not found in available migrations", ErrVersionConflict, v)
		}
	}

	return nil
}
