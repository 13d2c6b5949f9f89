package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/fieldops/internal/application"
	"github.com/example/fieldops/internal/persistence/sqlite"
	"github.com/example/fieldops/internal/persistence/sqlite/migration"
)

// SQLiteHarness exposes the application stores over a migrated, temporary
// SQLite database.
type SQLiteHarness struct {
	Storage   *sqlite.Storage
	Schedules *application.ScheduleStore
	Shifts    *application.ShiftStore
	Sites     *application.SiteStore
	Pins      *application.PinStore

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database in tb's temp dir. Close is
// registered with tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "fieldops.db")
	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:   storage,
		Schedules: application.NewScheduleStore(storage.Schedules),
		Shifts:    application.NewShiftStore(storage.Shifts),
		Sites:     application.NewSiteStore(storage.Sites),
		Pins:      application.NewPinStore(storage.Pins),
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedSite stores a site fixture and fails the test on error.
func (h *SQLiteHarness) SeedSite(tb testing.TB, site application.Site) application.Site {
	tb.Helper()
	stored, err := h.Sites.UpsertSite(context.Background(), site)
	if err != nil {
		tb.Fatalf("failed to seed site %s: %v", site.ClientID, err)
	}
	return stored
}

// SeedSchedule stores a schedule fixture and fails the test on error.
func (h *SQLiteHarness) SeedSchedule(tb testing.TB, schedule application.Schedule) application.Schedule {
	tb.Helper()
	stored, err := h.Schedules.CreateSchedule(context.Background(), schedule)
	if err != nil {
		tb.Fatalf("failed to seed schedule %s: %v", schedule.ID, err)
	}
	return stored
}
