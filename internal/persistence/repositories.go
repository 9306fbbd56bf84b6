package persistence

import (
	"context"
	"time"

	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// RuleRepository stores recurrence rules. Rules are immutable once created;
// there is intentionally no update operation.
type RuleRepository interface {
	CreateRule(ctx context.Context, rule recurrence.Rule) error
	GetRule(ctx context.Context, id string) (recurrence.Rule, error)
	ListRules(ctx context.Context) ([]recurrence.Rule, error)
	ListRulesByFrequency(ctx context.Context, freq recurrence.Frequency) ([]recurrence.Rule, error)
	DeleteRule(ctx context.Context, id string) error
}

// AssignmentRepository stores subject-to-team rule bindings. Reassignment
// closes the open row via Supersede instead of mutating or deleting it.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, assignment recurrence.Assignment) error
	GetActiveAssignment(ctx context.Context, subjectID string, date time.Time) (recurrence.Assignment, error)
	ListAssignmentsForSubject(ctx context.Context, subjectID string) ([]recurrence.Assignment, error)
	Supersede(ctx context.Context, subjectID string, endDate time.Time) error
}

// ExceptionRepository stores approved schedule exceptions.
type ExceptionRepository interface {
	CreateException(ctx context.Context, exception schedule.Exception) error
	ListEffectiveExceptions(ctx context.Context, subjectID string, date time.Time) ([]schedule.Exception, error)
	ListExceptionsInRange(ctx context.Context, subjectID string, start, end time.Time) ([]schedule.Exception, error)
	DeleteException(ctx context.Context, id string) error
}

// TeamRepository stores the team catalog.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team schedule.Team) error
	UpdateTeam(ctx context.Context, team schedule.Team) error
	GetTeam(ctx context.Context, id string) (schedule.Team, error)
	ListTeams(ctx context.Context) ([]schedule.Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

// ShiftRepository stores the shift template catalog.
type ShiftRepository interface {
	CreateShift(ctx context.Context, shift schedule.Shift) error
	UpdateShift(ctx context.Context, shift schedule.Shift) error
	GetShift(ctx context.Context, id string) (schedule.Shift, error)
	ListShifts(ctx context.Context) ([]schedule.Shift, error)
	DeleteShift(ctx context.Context, id string) error
}

// SettingsRepository stores schedule-defining configuration, currently the
// scheme anchor date the cycle offset arithmetic is pinned to.
type SettingsRepository interface {
	SchemeAnchorDate(ctx context.Context) (time.Time, error)
	SetSchemeAnchorDate(ctx context.Context, date time.Time) error
}

// UserRepository exposes CRUD operations for users and their credentials.
type UserRepository interface {
	CreateUser(ctx context.Context, creds UserCredentials) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
