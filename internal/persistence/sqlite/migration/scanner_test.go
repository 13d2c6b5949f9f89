package migration

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{"migrations": &fstest.MapFile{Mode: fs.ModeDir | 0o755}}
	for name, content := range files {
		fsys["migrations/"+name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func TestFileScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string
		expectedOrder []string
		expectError   error
		errorContains string
	}{
		{
			name: "valid migration directory with multiple files",
			files: map[string]string{
				"001_initial_schema.sql": "CREATE TABLE client_sites (client_id TEXT PRIMARY KEY);",
				"002_add_shifts.sql":     "CREATE TABLE shift_records (id TEXT PRIMARY KEY);",
			},
			expectedOrder: []string{"001", "002"},
		},
		{
			name:          "empty migration directory",
			files:         map[string]string{},
			expectedOrder: nil,
		},
		{
			name: "non-SQL files are ignored",
			files: map[string]string{
				"001_initial_schema.sql": "CREATE TABLE a (id TEXT);",
				"README.md":              "# notes",
			},
			expectedOrder: []string{"001"},
		},
		{
			name: "versions sort numerically",
			files: map[string]string{
				"10_late.sql":            "CREATE TABLE c (id TEXT);",
				"2_second.sql":           "CREATE TABLE b (id TEXT);",
				"001_initial_schema.sql": "CREATE TABLE a (id TEXT);",
			},
			expectedOrder: []string{"001", "2", "10"},
		},
		{
			name: "invalid filename format",
			files: map[string]string{
				"invalid_name.sql": "CREATE TABLE test (id TEXT);",
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "duplicate versions",
			files: map[string]string{
				"001_first.sql":  "CREATE TABLE a (id TEXT);",
				"001_second.sql": "CREATE TABLE b (id TEXT);",
			},
			expectError: ErrDuplicateVersion,
		},
		{
			name: "empty file",
			files: map[string]string{
				"001_empty.sql": "   \n",
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "empty",
		},
		{
			name: "comment-only file",
			files: map[string]string{
				"001_comments.sql": "-- nothing here\n-- still nothing\n",
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "no SQL statements",
		},
		{
			name: "unmatched parenthesis",
			files: map[string]string{
				"001_broken.sql": "CREATE TABLE a (id TEXT;",
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "parenthesis",
		},
		{
			name: "unterminated string",
			files: map[string]string{
				"001_broken.sql": "INSERT INTO a VALUES ('oops);",
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "unterminated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := NewFileScanner()

			migrations, err := scanner.ScanMigrations(mapFS(tt.files), "migrations")
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("error %q does not contain %q", err, tt.errorContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("ScanMigrations failed: %v", err)
			}

			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, want := range tt.expectedOrder {
				if migrations[i].Version != want {
					t.Errorf("position %d: expected version %s, got %s", i, want, migrations[i].Version)
				}
			}
		})
	}
}

func TestFileScanner_MissingDirectory(t *testing.T) {
	scanner := NewFileScanner()

	_, err := scanner.ScanMigrations(fstest.MapFS{}, "migrations")
	var fsErr *FileSystemError
	if !errors.As(err, &fsErr) {
		t.Fatalf("expected FileSystemError, got %v", err)
	}

	if _, err := scanner.ScanMigrations(nil, "migrations"); !errors.As(err, &fsErr) {
		t.Fatalf("expected FileSystemError for nil fs, got %v", err)
	}
}

func TestFileScanner_ParseMigrationFile(t *testing.T) {
	scanner := NewFileScanner()
	fsys := mapFS(map[string]string{
		"003_add_shift_indexes.sql": "-- Description: Index open shifts\nCREATE INDEX idx ON shift_records(worker_id);",
		"004_plain_name.sql":        "CREATE INDEX idx2 ON shift_records(client_id);",
	})

	withHeader, err := scanner.ParseMigrationFile(fsys, "migrations/003_add_shift_indexes.sql")
	if err != nil {
		t.Fatalf("ParseMigrationFile failed: %v", err)
	}
	if withHeader.Version != "003" || withHeader.Description != "Index open shifts" {
		t.Errorf("unexpected migration: %+v", withHeader)
	}
	if len(withHeader.Checksum) != 64 {
		t.Errorf("expected sha256 hex checksum, got %q", withHeader.Checksum)
	}

	fromName, err := scanner.ParseMigrationFile(fsys, "migrations/004_plain_name.sql")
	if err != nil {
		t.Fatalf("ParseMigrationFile failed: %v", err)
	}
	if fromName.Description != "plain name" {
		t.Errorf("expected description from filename, got %q", fromName.Description)
	}
	if fromName.Checksum == withHeader.Checksum {
		t.Error("different files must not share a checksum")
	}
}

func TestFileScanner_ValidateFileName(t *testing.T) {
	scanner := NewFileScanner()

	valid := []string{"001_initial_schema.sql", "12_add-index.sql", "7_x.sql"}
	for _, name := range valid {
		if err := scanner.ValidateFileName(name); err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}

	invalid := []string{"initial.sql", "001.sql", "001_schema.txt", "v1_schema.sql", "001_bad name.sql"}
	for _, name := range invalid {
		if err := scanner.ValidateFileName(name); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
