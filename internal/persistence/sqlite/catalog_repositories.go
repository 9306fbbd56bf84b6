package sqlite

import (
	"context"
	"database/sql"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// TeamRepository implements persistence.TeamRepository using SQLite.
type TeamRepository struct {
	pool *ConnectionPool
}

// CreateTeam inserts a team catalog entry.
func (r *TeamRepository) CreateTeam(ctx context.Context, team schedule.Team) error {
	if team.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO teams (id, name, type, active) VALUES (?, ?, ?, ?)`,
		team.ID, team.Name, string(team.Type), boolToInt(team.Active))
	return mapSQLError(err)
}

// UpdateTeam updates a team catalog entry.
func (r *TeamRepository) UpdateTeam(ctx context.Context, team schedule.Team) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE teams SET name = ?, type = ?, active = ? WHERE id = ?`,
		team.Name, string(team.Type), boolToInt(team.Active), team.ID)
	if err != nil {
		return mapSQLError(err)
	}
	return requireAffected(result)
}

// GetTeam retrieves a team by id.
func (r *TeamRepository) GetTeam(ctx context.Context, id string) (schedule.Team, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, name, type, active FROM teams WHERE id = ?`, id)
	return scanTeam(row)
}

// ListTeams returns all teams ordered by name.
func (r *TeamRepository) ListTeams(ctx context.Context) ([]schedule.Team, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT id, name, type, active FROM teams ORDER BY name, id`)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var teams []schedule.Team
	for rows.Next() {
		team, scanErr := scanTeam(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return teams, nil
}

// DeleteTeam removes a team. Assignments referencing it block the delete.
func (r *TeamRepository) DeleteTeam(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return mapSQLError(err)
	}
	return requireAffected(result)
}

func scanTeam(row rowScanner) (schedule.Team, error) {
	var (
		team   schedule.Team
		teamType string
		active int
	)
	if err := row.Scan(&team.ID, &team.Name, &teamType, &active); err != nil {
		return schedule.Team{}, mapSQLError(err)
	}
	team.Type = schedule.TeamType(teamType)
	team.Active = active != 0
	return team, nil
}

// ShiftRepository implements persistence.ShiftRepository using SQLite.
type ShiftRepository struct {
	pool *ConnectionPool
}

// CreateShift inserts a shift template.
func (r *ShiftRepository) CreateShift(ctx context.Context, shift schedule.Shift) error {
	if shift.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO shifts (id, name, start_time, end_time) VALUES (?, ?, ?, ?)`,
		shift.ID, shift.Name, shift.Start, shift.End)
	return mapSQLError(err)
}

// UpdateShift updates a shift template.
func (r *ShiftRepository) UpdateShift(ctx context.Context, shift schedule.Shift) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE shifts SET name = ?, start_time = ?, end_time = ? WHERE id = ?`,
		shift.Name, shift.Start, shift.End, shift.ID)
	if err != nil {
		return mapSQLError(err)
	}
	return requireAffected(result)
}

// GetShift retrieves a shift template by id.
func (r *ShiftRepository) GetShift(ctx context.Context, id string) (schedule.Shift, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, name, start_time, end_time FROM shifts WHERE id = ?`, id)
	var shift schedule.Shift
	if err := row.Scan(&shift.ID, &shift.Name, &shift.Start, &shift.End); err != nil {
		return schedule.Shift{}, mapSQLError(err)
	}
	return shift, nil
}

// ListShifts returns all shift templates ordered by start time.
func (r *ShiftRepository) ListShifts(ctx context.Context) ([]schedule.Shift, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT id, name, start_time, end_time FROM shifts ORDER BY start_time, id`)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var shifts []schedule.Shift
	for rows.Next() {
		var shift schedule.Shift
		if err := rows.Scan(&shift.ID, &shift.Name, &shift.Start, &shift.End); err != nil {
			return nil, mapSQLError(err)
		}
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return shifts, nil
}

// DeleteShift removes a shift template.
func (r *ShiftRepository) DeleteShift(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, id)
	if err != nil {
		return mapSQLError(err)
	}
	return requireAffected(result)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
