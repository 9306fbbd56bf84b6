package application

import (
	"time"

	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// User represents a worker account exposed by the application services.
// Users are the schedule subjects: day queries resolve against their id.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput captures caller provided user attributes. Password is consumed
// only at creation; updates leave credentials untouched.
type UserInput struct {
	Email       string
	DisplayName string
	IsAdmin     bool
	Password    string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update an existing user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// TeamInput captures caller provided team fields.
type TeamInput struct {
	Name   string
	Type   string
	Active bool
}

// ShiftInput captures caller provided shift template fields.
type ShiftInput struct {
	Name  string
	Start string
	End   string
}

// RuleInput captures caller provided recurrence rule fields. Frequency uses
// the wire labels daily, weekly, monthly, and cycle.
type RuleInput struct {
	Name         string
	Frequency    string
	Interval     int
	AnchorDate   time.Time
	Slots        []recurrence.Slot
	CycleLength  int
	CycleOffsets map[int][]recurrence.Slot
}

// AssignParams wraps the data required to bind a subject to a team and rule.
// A nil EndDate creates a permanent assignment; a bounded window models a
// temporary transfer.
type AssignParams struct {
	Principal Principal
	SubjectID string
	TeamID    string
	RuleID    string
	StartDate time.Time
	EndDate   *time.Time
}

// ExceptionInput captures caller provided exception fields. Kind uses the
// wire labels absence, shift_change, and time_reduction.
type ExceptionInput struct {
	SubjectID      string
	Kind           string
	Priority       int
	StartDate      time.Time
	EndDate        time.Time
	TargetShiftID  string
	ReducedMinutes int
	Note           string
}

// RecordExceptionParams wraps the data required to record an exception.
type RecordExceptionParams struct {
	Principal Principal
	Input     ExceptionInput
}

// DayResult is one date's outcome inside a range query. Err is set when the
// date could not be computed because a backing store failed; the rest of the
// range still resolves, so callers report failures per date.
type DayResult struct {
	Date    time.Time
	Subject string
	Day     schedule.Day
	Err     error
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication.
type AuthenticateResult struct {
	User    User
	Session Session
}
