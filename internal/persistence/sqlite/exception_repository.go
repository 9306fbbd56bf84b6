package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// ExceptionRepository implements persistence.ExceptionRepository using SQLite.
type ExceptionRepository struct {
	pool *ConnectionPool
}

// CreateException inserts an approved exception.
func (r *ExceptionRepository) CreateException(ctx context.Context, exception schedule.Exception) error {
	if exception.ID == "" {
		return persistence.ErrConstraintViolation
	}

	var endDate sql.NullString
	if !exception.EndDate.IsZero() {
		endDate = sql.NullString{String: formatDate(exception.EndDate), Valid: true}
	}
	var targetShift sql.NullString
	if exception.TargetShift != nil {
		targetShift = sql.NullString{String: exception.TargetShift.ID, Valid: true}
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO exceptions (id, subject_id, kind, priority, start_date, end_date, target_shift_id, reduced_minutes, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exception.ID,
		exception.SubjectID,
		exception.Kind.String(),
		exception.Priority,
		formatDate(exception.StartDate),
		endDate,
		targetShift,
		exception.ReducedMinutes,
		exception.Note,
		formatTimestamp(exception.CreatedAt),
	)
	return mapSQLError(err)
}

// ListEffectiveExceptions returns the subject's exceptions whose range covers
// the date, ordered by creation time so the resolver's tie-break is stable.
// Target shifts are joined in so the resolver never does its own lookups.
func (r *ExceptionRepository) ListEffectiveExceptions(ctx context.Context, subjectID string, date time.Time) ([]schedule.Exception, error) {
	day := formatDate(date)
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT e.id, e.subject_id, e.kind, e.priority, e.start_date, e.end_date,
		       e.reduced_minutes, e.note, e.created_at,
		       s.id, s.name, s.start_time, s.end_time
		FROM exceptions e
		LEFT JOIN shifts s ON s.id = e.target_shift_id
		WHERE e.subject_id = ?
		  AND e.start_date <= ?
		  AND (e.end_date IS NULL OR e.end_date >= ?)
		ORDER BY e.created_at, e.id`, subjectID, day, day)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()
	return collectExceptions(rows)
}

// ListExceptionsInRange returns the subject's exceptions overlapping the
// inclusive [start, end] window.
func (r *ExceptionRepository) ListExceptionsInRange(ctx context.Context, subjectID string, start, end time.Time) ([]schedule.Exception, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT e.id, e.subject_id, e.kind, e.priority, e.start_date, e.end_date,
		       e.reduced_minutes, e.note, e.created_at,
		       s.id, s.name, s.start_time, s.end_time
		FROM exceptions e
		LEFT JOIN shifts s ON s.id = e.target_shift_id
		WHERE e.subject_id = ?
		  AND e.start_date <= ?
		  AND (e.end_date IS NULL OR e.end_date >= ?)
		ORDER BY e.created_at, e.id`, subjectID, formatDate(end), formatDate(start))
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()
	return collectExceptions(rows)
}

// DeleteException removes an exception by id.
func (r *ExceptionRepository) DeleteException(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM exceptions WHERE id = ?`, id)
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

func collectExceptions(rows *sql.Rows) ([]schedule.Exception, error) {
	var exceptions []schedule.Exception
	for rows.Next() {
		var (
			exc        schedule.Exception
			kind       string
			startDate  string
			endDate    sql.NullString
			createdAt  string
			shiftID    sql.NullString
			shiftName  sql.NullString
			shiftStart sql.NullString
			shiftEnd   sql.NullString
		)
		err := rows.Scan(&exc.ID, &exc.SubjectID, &kind, &exc.Priority, &startDate, &endDate,
			&exc.ReducedMinutes, &exc.Note, &createdAt,
			&shiftID, &shiftName, &shiftStart, &shiftEnd)
		if err != nil {
			return nil, mapSQLError(err)
		}

		exc.Kind = schedule.ParseExceptionKind(kind)
		exc.StartDate = parseDate(startDate)
		if endDate.Valid {
			exc.EndDate = parseDate(endDate.String)
		}
		exc.CreatedAt = parseTimestamp(createdAt)
		if shiftID.Valid {
			exc.TargetShift = &schedule.Shift{
				ID:    shiftID.String,
				Name:  shiftName.String,
				Start: shiftStart.String,
				End:   shiftEnd.String,
			}
		}
		exceptions = append(exceptions, exc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return exceptions, nil
}
