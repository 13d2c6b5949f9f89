// Package migration provides a versioned schema migration system for SQLite.
//
// Migration files are read from any fs.FS, usually an embed.FS compiled into
// the binary, and must be named {version}_{description}.sql
// (e.g. "001_initial_schema.sql"). Applied versions and their checksums are
// tracked in a schema_migrations table so each file runs exactly once.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), migrationsFS, cfg, logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
