package sqlite

import (
	"time"
)

const (
	dateLayout = "2006-01-02"
)

// Storage bundles the SQLite-backed repositories behind a single handle so
// process wiring opens, migrates, and closes one thing.
type Storage struct {
	pool *ConnectionPool

	Rules       *RuleRepository
	Assignments *AssignmentRepository
	Exceptions  *ExceptionRepository
	Teams       *TeamRepository
	Shifts      *ShiftRepository
	Settings    *SettingsRepository
	Users       *UserRepository
	Sessions    *SessionRepository
}

// Open connects to the SQLite database behind the DSN and wires the
// repositories. Call Migrate before first use.
func Open(dsn string) (*Storage, error) {
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}

	s := &Storage{pool: pool}
	s.Rules = &RuleRepository{pool: pool}
	s.Assignments = &AssignmentRepository{pool: pool}
	s.Exceptions = &ExceptionRepository{pool: pool}
	s.Teams = &TeamRepository{pool: pool}
	s.Shifts = &ShiftRepository{pool: pool}
	s.Settings = &SettingsRepository{pool: pool}
	s.Users = &UserRepository{pool: pool}
	s.Sessions = &SessionRepository{pool: pool}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(value string) time.Time {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
