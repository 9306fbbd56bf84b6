package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// TeamStore captures the team catalog operations needed by the service.
type TeamStore interface {
	CreateTeam(ctx context.Context, team schedule.Team) error
	UpdateTeam(ctx context.Context, team schedule.Team) error
	GetTeam(ctx context.Context, id string) (schedule.Team, error)
	ListTeams(ctx context.Context) ([]schedule.Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

// ShiftStore captures the shift template operations needed by the service.
type ShiftStore interface {
	CreateShift(ctx context.Context, shift schedule.Shift) error
	UpdateShift(ctx context.Context, shift schedule.Shift) error
	GetShift(ctx context.Context, id string) (schedule.Shift, error)
	ListShifts(ctx context.Context) ([]schedule.Shift, error)
	DeleteShift(ctx context.Context, id string) error
}

// CatalogService manages the team and shift referents the schedule core
// resolves against. Catalog changes are schedule-defining, so every mutation
// triggers a full schedule cache invalidation.
type CatalogService struct {
	teams       TeamStore
	shifts      ShiftStore
	idGenerator func() string
	invalidate  func()
	logger      *slog.Logger
}

// NewCatalogService constructs a catalog service. invalidate is called after
// every successful mutation; nil disables invalidation (tests).
func NewCatalogService(teams TeamStore, shifts ShiftStore, idGenerator func() string, invalidate func(), logger *slog.Logger) *CatalogService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if invalidate == nil {
		invalidate = func() {}
	}
	return &CatalogService{
		teams:       teams,
		shifts:      shifts,
		idGenerator: idGenerator,
		invalidate:  invalidate,
		logger:      defaultLogger(logger),
	}
}

func (s *CatalogService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CatalogService", operation, attrs...)
}

// CreateTeam validates input and persists a new team for administrators.
func (s *CatalogService) CreateTeam(ctx context.Context, principal Principal, input TeamInput) (team schedule.Team, err error) {
	if s == nil || s.teams == nil {
		err = fmt.Errorf("team store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateTeam", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create team", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("team_id", team.ID).InfoContext(ctx, "team created")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := validateTeamInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	team = schedule.Team{
		ID:     s.idGenerator(),
		Name:   strings.TrimSpace(input.Name),
		Type:   schedule.TeamType(input.Type),
		Active: input.Active,
	}

	if err = s.teams.CreateTeam(ctx, team); err != nil {
		err = mapCatalogStoreError(err)
		return
	}

	s.invalidate()
	return
}

// UpdateTeam applies catalog changes to an existing team.
func (s *CatalogService) UpdateTeam(ctx context.Context, principal Principal, teamID string, input TeamInput) (team schedule.Team, err error) {
	if s == nil || s.teams == nil {
		err = fmt.Errorf("team store not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateTeam", "principal_id", principal.UserID, "team_id", teamID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update team", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "team updated")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	existing, getErr := s.teams.GetTeam(ctx, teamID)
	if getErr != nil {
		err = mapCatalogStoreError(getErr)
		return
	}

	vErr := validateTeamInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Type = schedule.TeamType(input.Type)
	existing.Active = input.Active

	if err = s.teams.UpdateTeam(ctx, existing); err != nil {
		err = mapCatalogStoreError(err)
		return
	}

	s.invalidate()
	team = existing
	return
}

// ListTeams returns the team catalog for any authenticated principal.
func (s *CatalogService) ListTeams(ctx context.Context, principal Principal) ([]schedule.Team, error) {
	if s == nil || s.teams == nil {
		return nil, nil
	}
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, mapCatalogStoreError(err)
	}
	return teams, nil
}

// DeleteTeam removes a team from the catalog.
func (s *CatalogService) DeleteTeam(ctx context.Context, principal Principal, teamID string) error {
	if s == nil || s.teams == nil {
		return fmt.Errorf("team store not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteTeam", "principal_id", principal.UserID, "team_id", teamID)
	if err := s.teams.DeleteTeam(ctx, teamID); err != nil {
		err = mapCatalogStoreError(err)
		logger.ErrorContext(ctx, "failed to delete team", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.invalidate()
	logger.InfoContext(ctx, "team deleted")
	return nil
}

// CreateShift validates input and persists a new shift template.
func (s *CatalogService) CreateShift(ctx context.Context, principal Principal, input ShiftInput) (shift schedule.Shift, err error) {
	if s == nil || s.shifts == nil {
		err = fmt.Errorf("shift store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateShift", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create shift", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("shift_id", shift.ID).InfoContext(ctx, "shift created")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := validateShiftInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	shift = schedule.Shift{
		ID:    s.idGenerator(),
		Name:  strings.TrimSpace(input.Name),
		Start: input.Start,
		End:   input.End,
	}

	if err = s.shifts.CreateShift(ctx, shift); err != nil {
		err = mapCatalogStoreError(err)
		return
	}

	s.invalidate()
	return
}

// UpdateShift applies changes to an existing shift template.
func (s *CatalogService) UpdateShift(ctx context.Context, principal Principal, shiftID string, input ShiftInput) (shift schedule.Shift, err error) {
	if s == nil || s.shifts == nil {
		err = fmt.Errorf("shift store not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateShift", "principal_id", principal.UserID, "shift_id", shiftID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update shift", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "shift updated")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	existing, getErr := s.shifts.GetShift(ctx, shiftID)
	if getErr != nil {
		err = mapCatalogStoreError(getErr)
		return
	}

	vErr := validateShiftInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Start = input.Start
	existing.End = input.End

	if err = s.shifts.UpdateShift(ctx, existing); err != nil {
		err = mapCatalogStoreError(err)
		return
	}

	s.invalidate()
	shift = existing
	return
}

// ListShifts returns the shift templates for any authenticated principal.
func (s *CatalogService) ListShifts(ctx context.Context, principal Principal) ([]schedule.Shift, error) {
	if s == nil || s.shifts == nil {
		return nil, nil
	}
	shifts, err := s.shifts.ListShifts(ctx)
	if err != nil {
		return nil, mapCatalogStoreError(err)
	}
	return shifts, nil
}

// DeleteShift removes a shift template.
func (s *CatalogService) DeleteShift(ctx context.Context, principal Principal, shiftID string) error {
	if s == nil || s.shifts == nil {
		return fmt.Errorf("shift store not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteShift", "principal_id", principal.UserID, "shift_id", shiftID)
	if err := s.shifts.DeleteShift(ctx, shiftID); err != nil {
		err = mapCatalogStoreError(err)
		logger.ErrorContext(ctx, "failed to delete shift", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.invalidate()
	logger.InfoContext(ctx, "shift deleted")
	return nil
}

func validateTeamInput(input TeamInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	switch schedule.TeamType(input.Type) {
	case schedule.TeamTypeCycle, schedule.TeamTypeAdHoc:
	default:
		vErr.add("type", "type must be cycle or adhoc")
	}

	return vErr
}

func validateShiftInput(input ShiftInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if !validClockTime(input.Start) {
		vErr.add("start", "start must use the HH:MM format")
	}
	if !validClockTime(input.End) {
		vErr.add("end", "end must use the HH:MM format")
	}

	return vErr
}

func validClockTime(value string) bool {
	_, err := time.Parse("15:04", value)
	return err == nil
}

func mapCatalogStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("id", "record is referenced by schedule history")
		return vErr
	case errors.Is(err, persistence.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
