package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
)

type ruleStoreStub struct {
	created   *recurrence.Rule
	createErr error
	rule      recurrence.Rule
	getErr    error
	rules     []recurrence.Rule
	listErr   error
	deletedID string
	deleteErr error
}

func (s *ruleStoreStub) CreateRule(ctx context.Context, rule recurrence.Rule) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = &rule
	return nil
}

func (s *ruleStoreStub) GetRule(ctx context.Context, id string) (recurrence.Rule, error) {
	if s.getErr != nil {
		return recurrence.Rule{}, s.getErr
	}
	return s.rule, nil
}

func (s *ruleStoreStub) ListRules(ctx context.Context) ([]recurrence.Rule, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.rules, nil
}

func (s *ruleStoreStub) DeleteRule(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedID = id
	return nil
}

func TestRuleService_CreateRule(t *testing.T) {
	ctx := context.Background()
	admin := Principal{UserID: "admin-1", IsAdmin: true}
	fixedNow := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }

	cycleInput := RuleInput{
		Name:        "Custom rotation",
		Frequency:   "cycle",
		CycleLength: 18,
		CycleOffsets: map[int][]recurrence.Slot{
			0: {{ShiftID: "shift-morning", TeamIDs: []string{"team-a"}}},
		},
	}

	t.Run("requires administrator privileges", func(t *testing.T) {
		store := &ruleStoreStub{}
		service := NewRuleService(store, nil, fixedNow, nil, nil)

		_, err := service.CreateRule(ctx, Principal{UserID: "user-1"}, cycleInput)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if store.created != nil {
			t.Fatalf("no rule should be persisted")
		}
	})

	t.Run("persists a valid cycle rule", func(t *testing.T) {
		store := &ruleStoreStub{}
		counter := &invalidationCounter{}
		service := NewRuleService(store, func() string { return "rule-1" }, fixedNow, counter.invalidate, nil)

		rule, err := service.CreateRule(ctx, admin, cycleInput)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rule.ID != "rule-1" || rule.Frequency != recurrence.FrequencyCycle {
			t.Fatalf("unexpected rule: %+v", rule)
		}
		if !rule.CreatedAt.Equal(fixedNow()) {
			t.Fatalf("expected the injected clock to stamp creation, got %v", rule.CreatedAt)
		}
		if counter.calls != 1 {
			t.Fatalf("expected one cache invalidation, got %d", counter.calls)
		}
	})

	t.Run("maps structural faults onto fields", func(t *testing.T) {
		service := NewRuleService(&ruleStoreStub{}, nil, fixedNow, nil, nil)

		tests := []struct {
			name  string
			input RuleInput
			field string
		}{
			{
				name:  "unknown frequency",
				input: RuleInput{Name: "r", Frequency: "yearly"},
				field: "frequency",
			},
			{
				name:  "calendar rule without anchor",
				input: RuleInput{Name: "r", Frequency: "weekly", Interval: 1},
				field: "anchor_date",
			},
			{
				name:  "cycle rule without offsets",
				input: RuleInput{Name: "r", Frequency: "cycle", CycleLength: 18},
				field: "cycle_offsets",
			},
			{
				name: "cycle offset out of range",
				input: RuleInput{
					Name: "r", Frequency: "cycle", CycleLength: 6,
					CycleOffsets: map[int][]recurrence.Slot{9: {{ShiftID: "s"}}},
				},
				field: "cycle_offsets",
			},
			{
				name: "missing name",
				input: RuleInput{
					Frequency: "daily", Interval: 1,
					AnchorDate: fixedNow(),
				},
				field: "name",
			},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := service.CreateRule(ctx, admin, tc.input)
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
}

func TestRuleService_GetAndList(t *testing.T) {
	ctx := context.Background()
	principal := Principal{UserID: "user-1"}

	t.Run("get maps a missing rule", func(t *testing.T) {
		service := NewRuleService(&ruleStoreStub{getErr: persistence.ErrNotFound}, nil, nil, nil, nil)

		_, err := service.GetRule(ctx, principal, "rule-x")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list is open to any principal", func(t *testing.T) {
		store := &ruleStoreStub{rules: []recurrence.Rule{{ID: "rule-1"}, {ID: "rule-2"}}}
		service := NewRuleService(store, nil, nil, nil, nil)

		rules, err := service.ListRules(ctx, principal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rules) != 2 {
			t.Fatalf("expected 2 rules, got %d", len(rules))
		}
	})
}

func TestRuleService_DeleteRule(t *testing.T) {
	ctx := context.Background()
	admin := Principal{UserID: "admin-1", IsAdmin: true}

	t.Run("requires administrator privileges", func(t *testing.T) {
		service := NewRuleService(&ruleStoreStub{}, nil, nil, nil, nil)

		if err := service.DeleteRule(ctx, Principal{UserID: "user-1"}, "rule-1"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("deletes and invalidates", func(t *testing.T) {
		store := &ruleStoreStub{}
		counter := &invalidationCounter{}
		service := NewRuleService(store, nil, nil, counter.invalidate, nil)

		if err := service.DeleteRule(ctx, admin, "rule-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.deletedID != "rule-1" || counter.calls != 1 {
			t.Fatalf("expected the delete to land and invalidate once")
		}
	})

	t.Run("rejects rules still referenced by assignments", func(t *testing.T) {
		service := NewRuleService(&ruleStoreStub{deleteErr: persistence.ErrForeignKeyViolation}, nil, nil, nil, nil)

		err := service.DeleteRule(ctx, admin, "rule-1")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected a validation error, got %v", err)
		}
	})
}
