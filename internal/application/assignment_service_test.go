package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

type assignmentStoreStub struct {
	created        *recurrence.Assignment
	createErr      error
	active         recurrence.Assignment
	activeErr      error
	history        []recurrence.Assignment
	historyErr     error
	supersededAt   *time.Time
	supersedeErr   error
	supersedeCalls int
}

func (s *assignmentStoreStub) CreateAssignment(ctx context.Context, assignment recurrence.Assignment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = &assignment
	return nil
}

func (s *assignmentStoreStub) GetActiveAssignment(ctx context.Context, subjectID string, date time.Time) (recurrence.Assignment, error) {
	if s.activeErr != nil {
		return recurrence.Assignment{}, s.activeErr
	}
	return s.active, nil
}

func (s *assignmentStoreStub) ListAssignmentsForSubject(ctx context.Context, subjectID string) ([]recurrence.Assignment, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.history, nil
}

func (s *assignmentStoreStub) Supersede(ctx context.Context, subjectID string, endDate time.Time) error {
	s.supersedeCalls++
	if s.supersedeErr != nil {
		return s.supersedeErr
	}
	s.supersededAt = &endDate
	return nil
}

type ruleReaderStub struct {
	rule recurrence.Rule
	err  error
}

func (s *ruleReaderStub) GetRule(ctx context.Context, id string) (recurrence.Rule, error) {
	if s.err != nil {
		return recurrence.Rule{}, s.err
	}
	return s.rule, nil
}

type teamReaderStub struct {
	team schedule.Team
	err  error
}

func (s *teamReaderStub) GetTeam(ctx context.Context, id string) (schedule.Team, error) {
	if s.err != nil {
		return schedule.Team{}, s.err
	}
	return s.team, nil
}

func TestAssignmentService_Assign(t *testing.T) {
	ctx := context.Background()
	admin := Principal{UserID: "admin-1", IsAdmin: true}
	fixedNow := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	start := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	validParams := AssignParams{
		Principal: admin,
		SubjectID: "user-1",
		TeamID:    "team-a",
		RuleID:    "rule-1",
		StartDate: start,
	}

	newService := func(store *assignmentStoreStub) (*AssignmentService, *invalidationCounter) {
		counter := &invalidationCounter{}
		service := NewAssignmentService(
			store,
			&ruleReaderStub{rule: recurrence.Rule{ID: "rule-1"}},
			&teamReaderStub{team: schedule.Team{ID: "team-a"}},
			func() string { return "asg-1" },
			fixedNow,
			counter.invalidate,
			nil,
		)
		return service, counter
	}

	t.Run("requires administrator privileges", func(t *testing.T) {
		store := &assignmentStoreStub{}
		service, _ := newService(store)

		params := validParams
		params.Principal = Principal{UserID: "user-1"}
		_, err := service.Assign(ctx, params)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if store.supersedeCalls != 0 || store.created != nil {
			t.Fatalf("nothing should be written")
		}
	})

	t.Run("closes the open assignment before creating the new one", func(t *testing.T) {
		store := &assignmentStoreStub{}
		service, counter := newService(store)

		assignment, err := service.Assign(ctx, validParams)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if assignment.ID != "asg-1" || !assignment.StartDate.Equal(start) {
			t.Fatalf("unexpected assignment: %+v", assignment)
		}
		if store.supersededAt == nil || !store.supersededAt.Equal(start.AddDate(0, 0, -1)) {
			t.Fatalf("the previous assignment must be closed the day before the new start, got %v", store.supersededAt)
		}
		if counter.calls != 1 {
			t.Fatalf("expected one cache invalidation, got %d", counter.calls)
		}
	})

	t.Run("tolerates no assignment to supersede", func(t *testing.T) {
		store := &assignmentStoreStub{supersedeErr: persistence.ErrNotFound}
		service, _ := newService(store)

		if _, err := service.Assign(ctx, validParams); err != nil {
			t.Fatalf("a first assignment has nothing to close: %v", err)
		}
		if store.created == nil {
			t.Fatalf("expected the assignment to be created")
		}
	})

	t.Run("validates referents and the window", func(t *testing.T) {
		pastEnd := start.AddDate(0, 0, -5)

		tests := []struct {
			name   string
			mutate func(*AssignParams)
			rules  *ruleReaderStub
			teams  *teamReaderStub
			field  string
		}{
			{
				name:   "missing subject",
				mutate: func(p *AssignParams) { p.SubjectID = "" },
				field:  "subject_id",
			},
			{
				name:   "end before start",
				mutate: func(p *AssignParams) { p.EndDate = &pastEnd },
				field:  "end_date",
			},
			{
				name:   "unknown team",
				mutate: func(p *AssignParams) {},
				teams:  &teamReaderStub{err: persistence.ErrNotFound},
				field:  "team_id",
			},
			{
				name:   "unknown rule",
				mutate: func(p *AssignParams) {},
				rules:  &ruleReaderStub{err: persistence.ErrNotFound},
				field:  "rule_id",
			},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				rules := tc.rules
				if rules == nil {
					rules = &ruleReaderStub{rule: recurrence.Rule{ID: "rule-1"}}
				}
				teams := tc.teams
				if teams == nil {
					teams = &teamReaderStub{team: schedule.Team{ID: "team-a"}}
				}
				service := NewAssignmentService(&assignmentStoreStub{}, rules, teams, nil, fixedNow, nil, nil)

				params := validParams
				tc.mutate(&params)
				_, err := service.Assign(ctx, params)
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected a validation error, got %v", err)
				}
				if _, ok := vErr.FieldErrors[tc.field]; !ok {
					t.Fatalf("expected field %q to be flagged, got %v", tc.field, vErr.FieldErrors)
				}
			})
		}
	})

	t.Run("normalizes a bounded window", func(t *testing.T) {
		store := &assignmentStoreStub{}
		service, _ := newService(store)

		end := time.Date(2024, time.June, 30, 18, 30, 0, 0, time.UTC)
		params := validParams
		params.EndDate = &end

		assignment, err := service.Assign(ctx, params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if assignment.EndDate == nil || !assignment.EndDate.Equal(time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("expected the end date normalized to midnight UTC, got %v", assignment.EndDate)
		}
	})
}

func TestAssignmentService_Queries(t *testing.T) {
	ctx := context.Background()
	principal := Principal{UserID: "user-1"}

	t.Run("active assignment maps a missing row", func(t *testing.T) {
		service := NewAssignmentService(&assignmentStoreStub{activeErr: persistence.ErrNotFound}, nil, nil, nil, nil, nil, nil)

		_, err := service.ActiveAssignment(ctx, principal, "user-1", time.Now())
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("history returns open and closed rows", func(t *testing.T) {
		store := &assignmentStoreStub{history: []recurrence.Assignment{{ID: "asg-1"}, {ID: "asg-2"}}}
		service := NewAssignmentService(store, nil, nil, nil, nil, nil, nil)

		history, err := service.History(ctx, principal, "user-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 assignments, got %d", len(history))
		}
	})
}
