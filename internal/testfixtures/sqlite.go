package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// storage instance for integration-style persistence tests.
type SQLiteHarness struct {
	Rules       persistence.RuleRepository
	Assignments persistence.AssignmentRepository
	Exceptions  persistence.ExceptionRepository
	Teams       persistence.TeamRepository
	Shifts      persistence.ShiftRepository
	Settings    persistence.SettingsRepository
	Users       persistence.UserRepository
	Sessions    persistence.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// also registers a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "qdue.db")

	storage, err := sqlite.Open("file:" + path + "?_foreign_keys=on")
	if err != nil {
		tb.Fatalf("failed to open sqlite storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate sqlite storage: %v", err)
	}

	harness := &SQLiteHarness{
		Rules:       storage.Rules,
		Assignments: storage.Assignments,
		Exceptions:  storage.Exceptions,
		Teams:       storage.Teams,
		Shifts:      storage.Shifts,
		Settings:    storage.Settings,
		Users:       storage.Users,
		Sessions:    storage.Sessions,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}
