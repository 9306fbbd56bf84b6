package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
)

// RuleRepository implements persistence.RuleRepository using SQLite. Slot and
// cycle tables are stored as JSON columns: they are read as opaque units and
// never queried field-by-field.
type RuleRepository struct {
	pool *ConnectionPool
}

// CreateRule inserts a new recurrence rule. Rules are immutable afterwards.
func (r *RuleRepository) CreateRule(ctx context.Context, rule recurrence.Rule) error {
	if rule.ID == "" {
		return persistence.ErrConstraintViolation
	}

	slots, err := json.Marshal(rule.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	offsets, err := json.Marshal(rule.CycleOffsets)
	if err != nil {
		return fmt.Errorf("encode cycle offsets: %w", err)
	}

	var anchor sql.NullString
	if !rule.AnchorDate.IsZero() {
		anchor = sql.NullString{String: formatDate(rule.AnchorDate), Valid: true}
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO rules (id, name, frequency, interval, anchor_date, cycle_length, slots, cycle_offsets, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.Name,
		rule.Frequency.String(),
		rule.Interval,
		anchor,
		rule.CycleLength,
		string(slots),
		string(offsets),
		formatTimestamp(rule.CreatedAt),
	)
	return mapSQLError(err)
}

// GetRule retrieves a rule by id.
func (r *RuleRepository) GetRule(ctx context.Context, id string) (recurrence.Rule, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, frequency, interval, anchor_date, cycle_length, slots, cycle_offsets, created_at
		FROM rules WHERE id = ?`, id)
	return scanRule(row)
}

// ListRules returns every rule ordered by creation time.
func (r *RuleRepository) ListRules(ctx context.Context) ([]recurrence.Rule, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, frequency, interval, anchor_date, cycle_length, slots, cycle_offsets, created_at
		FROM rules ORDER BY created_at, id`)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListRulesByFrequency returns rules matching the frequency, ordered by
// creation time.
func (r *RuleRepository) ListRulesByFrequency(ctx context.Context, freq recurrence.Frequency) ([]recurrence.Rule, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, frequency, interval, anchor_date, cycle_length, slots, cycle_offsets, created_at
		FROM rules WHERE frequency = ? ORDER BY created_at, id`, freq.String())
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// DeleteRule removes a rule. Referencing assignments block the delete through
// the foreign key, which surfaces as ErrForeignKeyViolation.
func (r *RuleRepository) DeleteRule(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return mapSQLError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (recurrence.Rule, error) {
	var (
		rule      recurrence.Rule
		frequency string
		anchor    sql.NullString
		slots     string
		offsets   string
		createdAt string
	)
	err := row.Scan(&rule.ID, &rule.Name, &frequency, &rule.Interval, &anchor, &rule.CycleLength, &slots, &offsets, &createdAt)
	if err != nil {
		return recurrence.Rule{}, mapSQLError(err)
	}

	rule.Frequency = recurrence.ParseFrequency(frequency)
	if anchor.Valid {
		rule.AnchorDate = parseDate(anchor.String)
	}
	rule.CreatedAt = parseTimestamp(createdAt)

	if err := json.Unmarshal([]byte(slots), &rule.Slots); err != nil {
		return recurrence.Rule{}, fmt.Errorf("decode slots for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(offsets), &rule.CycleOffsets); err != nil {
		return recurrence.Rule{}, fmt.Errorf("decode cycle offsets for rule %s: %w", rule.ID, err)
	}
	return rule, nil
}

func collectRules(rows *sql.Rows) ([]recurrence.Rule, error) {
	var rules []recurrence.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return rules, nil
}
