package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

var (
	userCounter      uint64
	teamCounter      uint64
	shiftCounter     uint64
	ruleCounter      uint64
	asgCounter       uint64
	exceptionCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceAnchor returns the scheme anchor date used by schedule fixtures,
// the same date the production defaults fall back to.
func ReferenceAnchor() time.Time {
	return time.Date(2018, time.November, 7, 0, 0, 0, 0, time.UTC)
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user fixture.
type UserOption func(*persistence.UserCredentials)

// NewUserFixture returns deterministic user credentials with optional overrides.
func NewUserFixture(opts ...UserOption) persistence.UserCredentials {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := persistence.UserCredentials{
		User: persistence.User{
			ID:          id,
			Email:       fmt.Sprintf("%s@example.com", id),
			DisplayName: fmt.Sprintf("User %03d", idx),
			IsAdmin:     false,
			CreatedAt:   created,
			UpdatedAt:   created,
		},
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *persistence.UserCredentials) {
		f.User.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *persistence.UserCredentials) {
		f.User.Email = email
	}
}

// WithUserAdmin marks the fixture as an administrator.
func WithUserAdmin() UserOption {
	return func(f *persistence.UserCredentials) {
		f.User.IsAdmin = true
	}
}

// WithPasswordHash overrides the stored password hash.
func WithPasswordHash(hash string) UserOption {
	return func(f *persistence.UserCredentials) {
		f.PasswordHash = hash
	}
}

// ----------------------------- Catalog fixtures -----------------------------

// TeamOption configures a generated team fixture.
type TeamOption func(*schedule.Team)

// NewTeamFixture returns a deterministic cycle team with optional overrides.
func NewTeamFixture(opts ...TeamOption) schedule.Team {
	idx := atomic.AddUint64(&teamCounter, 1)
	fixture := schedule.Team{
		ID:     fmt.Sprintf("team-%03d", idx),
		Name:   fmt.Sprintf("Team %03d", idx),
		Type:   schedule.TeamTypeCycle,
		Active: true,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithTeamID overrides the generated team ID.
func WithTeamID(id string) TeamOption {
	return func(f *schedule.Team) {
		f.ID = id
	}
}

// WithTeamType overrides the team type.
func WithTeamType(teamType schedule.TeamType) TeamOption {
	return func(f *schedule.Team) {
		f.Type = teamType
	}
}

// WithTeamInactive marks the team inactive.
func WithTeamInactive() TeamOption {
	return func(f *schedule.Team) {
		f.Active = false
	}
}

// ShiftOption configures a generated shift fixture.
type ShiftOption func(*schedule.Shift)

// NewShiftFixture returns a deterministic shift template with optional overrides.
func NewShiftFixture(opts ...ShiftOption) schedule.Shift {
	idx := atomic.AddUint64(&shiftCounter, 1)
	fixture := schedule.Shift{
		ID:    fmt.Sprintf("shift-%03d", idx),
		Name:  fmt.Sprintf("Shift %03d", idx),
		Start: "05:00",
		End:   "13:00",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithShiftID overrides the generated shift ID.
func WithShiftID(id string) ShiftOption {
	return func(f *schedule.Shift) {
		f.ID = id
	}
}

// WithShiftWindow overrides the shift start and end clock times.
func WithShiftWindow(start, end string) ShiftOption {
	return func(f *schedule.Shift) {
		f.Start = start
		f.End = end
	}
}

// ----------------------------- Rule fixtures -----------------------------

// RuleOption configures a generated rule fixture.
type RuleOption func(*recurrence.Rule)

// NewCycleRuleFixture returns a deterministic two-day cycle rule referencing
// the supplied shift and team. Offset zero is staffed, offset one rests.
func NewCycleRuleFixture(shiftID, teamID string, opts ...RuleOption) recurrence.Rule {
	idx := atomic.AddUint64(&ruleCounter, 1)
	fixture := recurrence.Rule{
		ID:          fmt.Sprintf("rule-%03d", idx),
		Name:        fmt.Sprintf("Rule %03d", idx),
		Frequency:   recurrence.FrequencyCycle,
		CycleLength: 2,
		CycleOffsets: map[int][]recurrence.Slot{
			0: {{ShiftID: shiftID, TeamIDs: []string{teamID}}},
		},
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// NewDailyRuleFixture returns a deterministic daily rule referencing the
// supplied shift and team, anchored at the reference anchor date.
func NewDailyRuleFixture(shiftID, teamID string, opts ...RuleOption) recurrence.Rule {
	idx := atomic.AddUint64(&ruleCounter, 1)
	fixture := recurrence.Rule{
		ID:         fmt.Sprintf("rule-%03d", idx),
		Name:       fmt.Sprintf("Rule %03d", idx),
		Frequency:  recurrence.FrequencyDaily,
		Interval:   1,
		AnchorDate: ReferenceAnchor(),
		Slots:      []recurrence.Slot{{ShiftID: shiftID, TeamIDs: []string{teamID}}},
		CreatedAt:  referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRuleID overrides the generated rule ID.
func WithRuleID(id string) RuleOption {
	return func(f *recurrence.Rule) {
		f.ID = id
	}
}

// WithCycle overrides the cycle length and offset table.
func WithCycle(length int, offsets map[int][]recurrence.Slot) RuleOption {
	return func(f *recurrence.Rule) {
		f.Frequency = recurrence.FrequencyCycle
		f.CycleLength = length
		f.CycleOffsets = offsets
	}
}

// ----------------------------- Assignment fixtures -----------------------------

// AssignmentOption configures a generated assignment fixture.
type AssignmentOption func(*recurrence.Assignment)

// NewAssignmentFixture returns a deterministic open assignment binding the
// subject to the supplied team and rule, starting at the reference anchor.
func NewAssignmentFixture(subjectID, teamID, ruleID string, opts ...AssignmentOption) recurrence.Assignment {
	idx := atomic.AddUint64(&asgCounter, 1)
	fixture := recurrence.Assignment{
		ID:        fmt.Sprintf("assignment-%03d", idx),
		SubjectID: subjectID,
		TeamID:    teamID,
		RuleID:    ruleID,
		StartDate: ReferenceAnchor(),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAssignmentStart overrides the assignment start date.
func WithAssignmentStart(start time.Time) AssignmentOption {
	return func(f *recurrence.Assignment) {
		f.StartDate = start
	}
}

// WithAssignmentEnd closes the assignment at the given date.
func WithAssignmentEnd(end time.Time) AssignmentOption {
	return func(f *recurrence.Assignment) {
		f.EndDate = &end
	}
}

// ----------------------------- Exception fixtures -----------------------------

// ExceptionOption configures a generated exception fixture.
type ExceptionOption func(*schedule.Exception)

// NewExceptionFixture returns a deterministic absence exception for the
// subject covering a single date.
func NewExceptionFixture(subjectID string, date time.Time, opts ...ExceptionOption) schedule.Exception {
	idx := atomic.AddUint64(&exceptionCounter, 1)
	fixture := schedule.Exception{
		ID:        fmt.Sprintf("exception-%03d", idx),
		SubjectID: subjectID,
		Kind:      schedule.ExceptionAbsence,
		Priority:  1,
		StartDate: schedule.NormalizeDate(date),
		EndDate:   schedule.NormalizeDate(date),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithExceptionKind overrides the exception kind.
func WithExceptionKind(kind schedule.ExceptionKind) ExceptionOption {
	return func(f *schedule.Exception) {
		f.Kind = kind
	}
}

// WithExceptionPriority overrides the exception priority.
func WithExceptionPriority(priority int) ExceptionOption {
	return func(f *schedule.Exception) {
		f.Priority = priority
	}
}

// WithExceptionTargetShift points a shift-change exception at the given shift.
func WithExceptionTargetShift(shift schedule.Shift) ExceptionOption {
	return func(f *schedule.Exception) {
		f.Kind = schedule.ExceptionShiftChange
		f.TargetShift = &shift
	}
}

// WithExceptionCreatedAt overrides the creation timestamp, which drives the
// resolver's tie break among equal priorities.
func WithExceptionCreatedAt(createdAt time.Time) ExceptionOption {
	return func(f *schedule.Exception) {
		f.CreatedAt = createdAt
	}
}
