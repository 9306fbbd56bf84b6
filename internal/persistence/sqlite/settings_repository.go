package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

const schemeAnchorKey = "scheme_anchor_date"

// SettingsRepository implements persistence.SettingsRepository using SQLite.
type SettingsRepository struct {
	pool *ConnectionPool
}

// SchemeAnchorDate reads the persisted scheme anchor date. An unset anchor
// yields persistence.ErrNotFound; the caller applies the documented fallback.
func (r *SettingsRepository) SchemeAnchorDate(ctx context.Context) (time.Time, error) {
	var value string
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, schemeAnchorKey).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, persistence.ErrNotFound
		}
		return time.Time{}, mapSQLError(err)
	}

	anchor := parseDate(value)
	if anchor.IsZero() {
		return time.Time{}, persistence.ErrConstraintViolation
	}
	return anchor, nil
}

// SetSchemeAnchorDate persists a new scheme anchor date.
func (r *SettingsRepository) SetSchemeAnchorDate(ctx context.Context, date time.Time) error {
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		schemeAnchorKey, formatDate(date))
	return mapSQLError(err)
}
