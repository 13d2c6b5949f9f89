// Package postgres implements the persistence repositories on PostgreSQL
// through database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/fieldops/internal/persistence"
)

//go:embed schema.sql
var schemaSQL string

// openShiftIndex is the partial unique index guarding one open shift per worker.
const openShiftIndex = "shift_records_one_open"

// Config holds connection settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Storage bundles the PostgreSQL repositories over one *sql.DB.
type Storage struct {
	db *sql.DB

	Schedules *ScheduleRepository
	Shifts    *ShiftRepository
	Sites     *SiteRepository
	Pins      *PinRepository
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return New(db), nil
}

// New wraps an existing connection.
func New(db *sql.DB) *Storage {
	return &Storage{
		db:        db,
		Schedules: &ScheduleRepository{db: db},
		Shifts:    &ShiftRepository{db: db},
		Sites:     &SiteRepository{db: db},
		Pins:      &PinRepository{db: db},
	}
}

// Migrate creates the schema. Every statement is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Storage) Close() error {
	return s.db.Close()
}

// mapError converts driver errors into persistence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case "23505":
		if pqErr.Constraint == openShiftIndex {
			return fmt.Errorf("%w: %v", persistence.ErrOpenShiftExists, err)
		}
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case "23503":
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case "23514", "23502":
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return err
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
