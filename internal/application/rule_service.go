package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
)

// RuleStore captures the recurrence rule operations needed by the service.
type RuleStore interface {
	CreateRule(ctx context.Context, rule recurrence.Rule) error
	GetRule(ctx context.Context, id string) (recurrence.Rule, error)
	ListRules(ctx context.Context) ([]recurrence.Rule, error)
	DeleteRule(ctx context.Context, id string) error
}

// RuleService manages recurrence rules. Rules are immutable: a pattern change
// is a new rule plus a reassignment, which keeps historical days reproducible.
type RuleService struct {
	rules       RuleStore
	idGenerator func() string
	now         func() time.Time
	invalidate  func()
	logger      *slog.Logger
}

// NewRuleService constructs a rule service.
func NewRuleService(rules RuleStore, idGenerator func() string, now func() time.Time, invalidate func(), logger *slog.Logger) *RuleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if invalidate == nil {
		invalidate = func() {}
	}
	return &RuleService{
		rules:       rules,
		idGenerator: idGenerator,
		now:         now,
		invalidate:  invalidate,
		logger:      defaultLogger(logger),
	}
}

func (s *RuleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RuleService", operation, attrs...)
}

// CreateRule validates and persists a new recurrence rule for administrators.
func (s *RuleService) CreateRule(ctx context.Context, principal Principal, input RuleInput) (rule recurrence.Rule, err error) {
	if s == nil || s.rules == nil {
		err = fmt.Errorf("rule store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRule", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create rule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rule_id", rule.ID, "frequency", rule.Frequency.String()).InfoContext(ctx, "rule created")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	rule = recurrence.Rule{
		ID:           s.idGenerator(),
		Name:         strings.TrimSpace(input.Name),
		Frequency:    recurrence.ParseFrequency(input.Frequency),
		Interval:     input.Interval,
		AnchorDate:   input.AnchorDate,
		Slots:        input.Slots,
		CycleLength:  input.CycleLength,
		CycleOffsets: input.CycleOffsets,
		CreatedAt:    s.nowUTC(),
	}

	if vErr := validateRule(rule); vErr.HasErrors() {
		err = vErr
		rule = recurrence.Rule{}
		return
	}

	if err = s.rules.CreateRule(ctx, rule); err != nil {
		err = mapPlanningStoreError(err)
		rule = recurrence.Rule{}
		return
	}

	s.invalidate()
	return
}

// GetRule fetches a single rule by id.
func (s *RuleService) GetRule(ctx context.Context, principal Principal, ruleID string) (recurrence.Rule, error) {
	if s == nil || s.rules == nil {
		return recurrence.Rule{}, fmt.Errorf("rule store not configured")
	}
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return recurrence.Rule{}, mapPlanningStoreError(err)
	}
	return rule, nil
}

// ListRules returns every rule in the catalog.
func (s *RuleService) ListRules(ctx context.Context, principal Principal) ([]recurrence.Rule, error) {
	if s == nil || s.rules == nil {
		return nil, nil
	}
	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		return nil, mapPlanningStoreError(err)
	}
	return rules, nil
}

// DeleteRule removes a rule. The store rejects the delete while assignments
// still reference the rule.
func (s *RuleService) DeleteRule(ctx context.Context, principal Principal, ruleID string) error {
	if s == nil || s.rules == nil {
		return fmt.Errorf("rule store not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteRule", "principal_id", principal.UserID, "rule_id", ruleID)
	if err := s.rules.DeleteRule(ctx, ruleID); err != nil {
		err = mapPlanningStoreError(err)
		logger.ErrorContext(ctx, "failed to delete rule", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.invalidate()
	logger.InfoContext(ctx, "rule deleted")
	return nil
}

func (s *RuleService) nowUTC() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func validateRule(rule recurrence.Rule) *ValidationError {
	vErr := &ValidationError{}

	if rule.Name == "" {
		vErr.add("name", "name is required")
	}
	if err := rule.Validate(); err != nil {
		switch {
		case errors.Is(err, recurrence.ErrInvalidFrequency):
			vErr.add("frequency", "frequency must be daily, weekly, monthly, or cycle")
		case errors.Is(err, recurrence.ErrInvalidInterval):
			vErr.add("interval", "interval must be at least 1")
		case errors.Is(err, recurrence.ErrMissingAnchor):
			vErr.add("anchor_date", "anchor date is required")
		case errors.Is(err, recurrence.ErrInvalidCycleLength):
			vErr.add("cycle_length", "cycle length must be at least 1")
		case errors.Is(err, recurrence.ErrEmptyCycle):
			vErr.add("cycle_offsets", "at least one cycle offset must carry a slot")
		case errors.Is(err, recurrence.ErrOffsetOutOfRange):
			vErr.add("cycle_offsets", "cycle offsets must be within [0, cycle length)")
		default:
			vErr.add("rule", err.Error())
		}
	}

	return vErr
}

func mapPlanningStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("id", "record references or is referenced by another record")
		return vErr
	case errors.Is(err, persistence.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
