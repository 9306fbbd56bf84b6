package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migrations lists the schema in application order. Each entry runs at most
// once; the applied version is tracked in schema_migrations. Statements within
// one entry share a transaction, so a partially applied version never sticks.
var migrations = []struct {
	version    int
	statements []string
}{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS teams (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				type TEXT NOT NULL CHECK (type IN ('cycle', 'adhoc')),
				active INTEGER NOT NULL DEFAULT 1
			)`,
			`CREATE TABLE IF NOT EXISTS shifts (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				start_time TEXT NOT NULL,
				end_time TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS rules (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				frequency TEXT NOT NULL,
				interval INTEGER NOT NULL DEFAULT 1,
				anchor_date TEXT,
				cycle_length INTEGER NOT NULL DEFAULT 0,
				slots TEXT NOT NULL DEFAULT '[]',
				cycle_offsets TEXT NOT NULL DEFAULT '{}',
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL,
				is_admin INTEGER NOT NULL DEFAULT 0,
				password_hash TEXT NOT NULL DEFAULT '',
				disabled INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS assignments (
				id TEXT PRIMARY KEY,
				subject_id TEXT NOT NULL REFERENCES users(id),
				team_id TEXT NOT NULL REFERENCES teams(id),
				rule_id TEXT NOT NULL REFERENCES rules(id),
				start_date TEXT NOT NULL,
				end_date TEXT,
				created_at TEXT NOT NULL,
				CHECK (end_date IS NULL OR end_date >= start_date)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_assignments_subject
				ON assignments (subject_id, start_date)`,
			`CREATE TABLE IF NOT EXISTS exceptions (
				id TEXT PRIMARY KEY,
				subject_id TEXT NOT NULL REFERENCES users(id),
				kind TEXT NOT NULL CHECK (kind IN ('absence', 'shift_change', 'time_reduction')),
				priority INTEGER NOT NULL DEFAULT 0,
				start_date TEXT NOT NULL,
				end_date TEXT,
				target_shift_id TEXT REFERENCES shifts(id),
				reduced_minutes INTEGER NOT NULL DEFAULT 0,
				note TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				CHECK (end_date IS NULL OR end_date >= start_date)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_exceptions_subject
				ON exceptions (subject_id, start_date)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				token TEXT NOT NULL UNIQUE,
				expires_at TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				revoked_at TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS settings (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
		},
	},
}

// Migrate brings the schema up to the latest version.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.DB().ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := s.migrationApplied(ctx, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		err = s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d: %w", m.version, err)
				}
			}
			_, err := tx.Exec(
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				m.version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Storage) migrationApplied(ctx context.Context, version int) (bool, error) {
	var count int
	err := s.pool.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %d: %w", version, err)
	}
	return count > 0, nil
}
