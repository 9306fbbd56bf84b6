package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// AssignmentStore captures the assignment operations needed by the service.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, assignment recurrence.Assignment) error
	GetActiveAssignment(ctx context.Context, subjectID string, date time.Time) (recurrence.Assignment, error)
	ListAssignmentsForSubject(ctx context.Context, subjectID string) ([]recurrence.Assignment, error)
	Supersede(ctx context.Context, subjectID string, endDate time.Time) error
}

// assignmentRuleReader is the read-only rule access assignments need to
// validate the referenced rule exists.
type assignmentRuleReader interface {
	GetRule(ctx context.Context, id string) (recurrence.Rule, error)
}

// assignmentTeamReader is the read-only team access assignments need to
// validate the referenced team exists.
type assignmentTeamReader interface {
	GetTeam(ctx context.Context, id string) (schedule.Team, error)
}

// AssignmentService binds subjects to teams and recurrence rules.
// Reassignment never rewrites history: the open assignment is closed the day
// before the new one starts, so past dates keep resolving through the rows
// that were active then.
type AssignmentService struct {
	assignments AssignmentStore
	rules       assignmentRuleReader
	teams       assignmentTeamReader
	idGenerator func() string
	now         func() time.Time
	invalidate  func()
	logger      *slog.Logger
}

// NewAssignmentService constructs an assignment service.
func NewAssignmentService(assignments AssignmentStore, rules assignmentRuleReader, teams assignmentTeamReader, idGenerator func() string, now func() time.Time, invalidate func(), logger *slog.Logger) *AssignmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if invalidate == nil {
		invalidate = func() {}
	}
	return &AssignmentService{
		assignments: assignments,
		rules:       rules,
		teams:       teams,
		idGenerator: idGenerator,
		now:         now,
		invalidate:  invalidate,
		logger:      defaultLogger(logger),
	}
}

func (s *AssignmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AssignmentService", operation, attrs...)
}

// Assign binds a subject to a team under a rule starting at the given date.
// Any assignment still open for the subject is closed at startDate-1 first.
func (s *AssignmentService) Assign(ctx context.Context, params AssignParams) (assignment recurrence.Assignment, err error) {
	if s == nil || s.assignments == nil {
		err = fmt.Errorf("assignment store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Assign",
		"principal_id", params.Principal.UserID,
		"subject_id", params.SubjectID,
		"team_id", params.TeamID,
		"rule_id", params.RuleID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to assign subject", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("assignment_id", assignment.ID).InfoContext(ctx, "subject assigned")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := s.validateAssignParams(ctx, params)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	start := schedule.NormalizeDate(params.StartDate)

	// Close the open assignment, if any, the day before the new one starts.
	if supErr := s.assignments.Supersede(ctx, params.SubjectID, start.AddDate(0, 0, -1)); supErr != nil && !errors.Is(supErr, persistence.ErrNotFound) {
		err = mapPlanningStoreError(supErr)
		return
	}

	assignment = recurrence.Assignment{
		ID:        s.idGenerator(),
		SubjectID: params.SubjectID,
		TeamID:    params.TeamID,
		RuleID:    params.RuleID,
		StartDate: start,
		CreatedAt: s.now().UTC(),
	}
	if params.EndDate != nil {
		end := schedule.NormalizeDate(*params.EndDate)
		assignment.EndDate = &end
	}

	if err = s.assignments.CreateAssignment(ctx, assignment); err != nil {
		err = mapPlanningStoreError(err)
		assignment = recurrence.Assignment{}
		return
	}

	s.invalidate()
	return
}

// ActiveAssignment returns the assignment covering the subject on the given
// date. ErrNotFound means the subject has no schedule on that date.
func (s *AssignmentService) ActiveAssignment(ctx context.Context, principal Principal, subjectID string, date time.Time) (recurrence.Assignment, error) {
	if s == nil || s.assignments == nil {
		return recurrence.Assignment{}, fmt.Errorf("assignment store not configured")
	}
	assignment, err := s.assignments.GetActiveAssignment(ctx, subjectID, schedule.NormalizeDate(date))
	if err != nil {
		return recurrence.Assignment{}, mapPlanningStoreError(err)
	}
	return assignment, nil
}

// History returns every assignment recorded for the subject, open and closed.
func (s *AssignmentService) History(ctx context.Context, principal Principal, subjectID string) ([]recurrence.Assignment, error) {
	if s == nil || s.assignments == nil {
		return nil, fmt.Errorf("assignment store not configured")
	}
	assignments, err := s.assignments.ListAssignmentsForSubject(ctx, subjectID)
	if err != nil {
		return nil, mapPlanningStoreError(err)
	}
	return assignments, nil
}

func (s *AssignmentService) validateAssignParams(ctx context.Context, params AssignParams) *ValidationError {
	vErr := &ValidationError{}

	if params.SubjectID == "" {
		vErr.add("subject_id", "subject id is required")
	}
	if params.StartDate.IsZero() {
		vErr.add("start_date", "start date is required")
	}
	if params.EndDate != nil && !params.EndDate.IsZero() {
		if schedule.NormalizeDate(*params.EndDate).Before(schedule.NormalizeDate(params.StartDate)) {
			vErr.add("end_date", "end date must not precede start date")
		}
	}

	if params.TeamID == "" {
		vErr.add("team_id", "team id is required")
	} else if s.teams != nil {
		if _, err := s.teams.GetTeam(ctx, params.TeamID); errors.Is(err, persistence.ErrNotFound) {
			vErr.add("team_id", "team does not exist")
		}
	}

	if params.RuleID == "" {
		vErr.add("rule_id", "rule id is required")
	} else if s.rules != nil {
		if _, err := s.rules.GetRule(ctx, params.RuleID); errors.Is(err, persistence.ErrNotFound) {
			vErr.add("rule_id", "rule does not exist")
		}
	}

	return vErr
}
