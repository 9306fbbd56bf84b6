package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
)

// AssignmentRepository implements persistence.AssignmentRepository using
// SQLite. Rows are append-only: reassignment closes the open row via
// Supersede and inserts a new one, preserving history.
type AssignmentRepository struct {
	pool *ConnectionPool
}

// CreateAssignment inserts a new assignment row.
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, assignment recurrence.Assignment) error {
	if assignment.ID == "" {
		return persistence.ErrConstraintViolation
	}

	var endDate sql.NullString
	if assignment.EndDate != nil {
		endDate = sql.NullString{String: formatDate(*assignment.EndDate), Valid: true}
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO assignments (id, subject_id, team_id, rule_id, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		assignment.ID,
		assignment.SubjectID,
		assignment.TeamID,
		assignment.RuleID,
		formatDate(assignment.StartDate),
		endDate,
		formatTimestamp(assignment.CreatedAt),
	)
	return mapSQLError(err)
}

// GetActiveAssignment returns the assignment whose validity window covers the
// date for the subject. With overlapping windows the most recently started
// row wins, which keeps "at most one active assignment" deterministic even if
// the write-side guard was bypassed.
func (r *AssignmentRepository) GetActiveAssignment(ctx context.Context, subjectID string, date time.Time) (recurrence.Assignment, error) {
	day := formatDate(date)
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, subject_id, team_id, rule_id, start_date, end_date, created_at
		FROM assignments
		WHERE subject_id = ?
		  AND start_date <= ?
		  AND (end_date IS NULL OR end_date >= ?)
		ORDER BY start_date DESC, created_at DESC
		LIMIT 1`, subjectID, day, day)
	return scanAssignment(row)
}

// ListAssignmentsForSubject returns a subject's full assignment history,
// oldest first.
func (r *AssignmentRepository) ListAssignmentsForSubject(ctx context.Context, subjectID string) ([]recurrence.Assignment, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, subject_id, team_id, rule_id, start_date, end_date, created_at
		FROM assignments
		WHERE subject_id = ?
		ORDER BY start_date, created_at`, subjectID)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var assignments []recurrence.Assignment
	for rows.Next() {
		assignment, scanErr := scanAssignment(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return assignments, nil
}

// Supersede closes every open assignment of the subject at endDate. A subject
// without an open assignment is not an error; there is simply nothing to close.
func (r *AssignmentRepository) Supersede(ctx context.Context, subjectID string, endDate time.Time) error {
	_, err := r.pool.DB().ExecContext(ctx, `
		UPDATE assignments SET end_date = ?
		WHERE subject_id = ? AND end_date IS NULL`,
		formatDate(endDate), subjectID)
	return mapSQLError(err)
}

func scanAssignment(row rowScanner) (recurrence.Assignment, error) {
	var (
		assignment recurrence.Assignment
		startDate  string
		endDate    sql.NullString
		createdAt  string
	)
	err := row.Scan(&assignment.ID, &assignment.SubjectID, &assignment.TeamID, &assignment.RuleID, &startDate, &endDate, &createdAt)
	if err != nil {
		return recurrence.Assignment{}, mapSQLError(err)
	}

	assignment.StartDate = parseDate(startDate)
	if endDate.Valid {
		end := parseDate(endDate.String)
		assignment.EndDate = &end
	}
	assignment.CreatedAt = parseTimestamp(createdAt)
	return assignment, nil
}
