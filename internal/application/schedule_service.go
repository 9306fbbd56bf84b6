package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calvuzs3/qdue-server/internal/persistence"
	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// DefaultSchemeAnchor is the scheme anchor used until an administrator sets
// one. 2018-11-07 is offset zero of the reference rotation the default seed
// data is built around.
var DefaultSchemeAnchor = time.Date(2018, time.November, 7, 0, 0, 0, 0, time.UTC)

// maxRangeDays bounds a single range query. Larger windows must be paged.
const maxRangeDays = 400

// scheduleRuleStore is the read access the schedule façade needs to rules.
type scheduleRuleStore interface {
	GetRule(ctx context.Context, id string) (recurrence.Rule, error)
	ListRules(ctx context.Context) ([]recurrence.Rule, error)
}

// scheduleAssignmentStore resolves which assignment covers a subject on a date.
type scheduleAssignmentStore interface {
	GetActiveAssignment(ctx context.Context, subjectID string, date time.Time) (recurrence.Assignment, error)
}

// scheduleExceptionStore lists the exceptions effective for a subject on a date.
type scheduleExceptionStore interface {
	ListEffectiveExceptions(ctx context.Context, subjectID string, date time.Time) ([]schedule.Exception, error)
}

// scheduleCatalogStore loads the shift and team referents days resolve against.
type scheduleCatalogStore interface {
	ListTeams(ctx context.Context) ([]schedule.Team, error)
	ListShifts(ctx context.Context) ([]schedule.Shift, error)
}

// SettingsStore reads and writes schedule-defining configuration.
type SettingsStore interface {
	SchemeAnchorDate(ctx context.Context) (time.Time, error)
	SetSchemeAnchorDate(ctx context.Context, date time.Time) error
}

// ScheduleService is the read façade over the schedule core. It resolves
// rules, assignments, exceptions, and the catalog into concrete days, caches
// the results, and answers all day, range, month, and event queries.
//
// Queries require any authenticated principal; only the scheme anchor update
// is admin gated, since it redefines every generated day.
type ScheduleService struct {
	rules       scheduleRuleStore
	assignments scheduleAssignmentStore
	exceptions  scheduleExceptionStore
	catalog     scheduleCatalogStore
	settings    SettingsStore
	calculator  *recurrence.Calculator
	cache       *DayCache
	workers     int
	logger      *slog.Logger
}

// NewScheduleService constructs the schedule façade. workers bounds the
// concurrency of range queries; non-positive values run dates sequentially.
func NewScheduleService(
	rules scheduleRuleStore,
	assignments scheduleAssignmentStore,
	exceptions scheduleExceptionStore,
	catalog scheduleCatalogStore,
	settings SettingsStore,
	cache *DayCache,
	workers int,
	logger *slog.Logger,
) *ScheduleService {
	if workers <= 0 {
		workers = 1
	}
	logger = defaultLogger(logger)
	return &ScheduleService{
		rules:       rules,
		assignments: assignments,
		exceptions:  exceptions,
		catalog:     catalog,
		settings:    settings,
		calculator:  recurrence.NewCalculator(logger),
		cache:       cache,
		workers:     workers,
		logger:      logger,
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// InvalidateCache drops every memoized day. Mutation services call this after
// any schedule-defining change.
func (s *ScheduleService) InvalidateCache() {
	if s == nil {
		return
	}
	s.cache.Purge()
}

// GetDay returns the resolved schedule for one date. subjectID selects a
// personal view; an empty subjectID returns the team-agnostic board view.
// Results are served from the cache when possible.
func (s *ScheduleService) GetDay(ctx context.Context, principal Principal, date time.Time, subjectID string) (schedule.Day, error) {
	if s == nil {
		return schedule.Day{}, fmt.Errorf("schedule service not configured")
	}
	date = schedule.NormalizeDate(date)

	if day, ok := s.cache.Get(date, subjectID); ok {
		return day, nil
	}

	day, err := s.GenerateDay(ctx, date, subjectID)
	if err != nil {
		return schedule.Day{}, err
	}

	s.cache.Put(date, subjectID, day)
	return day, nil
}

// GenerateDay computes the resolved schedule for one date, bypassing the
// cache. A subject with no active assignment yields an empty day, not an
// error: not being scheduled is a valid outcome.
func (s *ScheduleService) GenerateDay(ctx context.Context, date time.Time, subjectID string) (day schedule.Day, err error) {
	date = schedule.NormalizeDate(date)

	logger := s.loggerWith(ctx, "GenerateDay", "date", date.Format("2006-01-02"), "subject_id", subjectID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to generate day", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	anchor, err := s.schemeAnchor(ctx)
	if err != nil {
		return schedule.Day{}, err
	}
	cat, err := s.loadCatalog(ctx)
	if err != nil {
		return schedule.Day{}, err
	}

	if subjectID == "" {
		return s.generateBoardDay(ctx, date, anchor, cat)
	}
	return s.generateSubjectDay(ctx, date, subjectID, anchor, cat)
}

// generateSubjectDay resolves one subject's personal day: active assignment,
// its rule, the base day, then exception resolution.
func (s *ScheduleService) generateSubjectDay(ctx context.Context, date time.Time, subjectID string, anchor time.Time, cat recurrence.Catalog) (schedule.Day, error) {
	asg, err := s.assignments.GetActiveAssignment(ctx, subjectID, date)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return schedule.Day{Date: date, CycleOffset: -1}, nil
		}
		return schedule.Day{}, mapPlanningStoreError(err)
	}

	rule, err := s.rules.GetRule(ctx, asg.RuleID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			// Dangling rule reference is a configuration fault, not a query error.
			day := schedule.Day{Date: date, CycleOffset: -1}
			day.Diagnostics = append(day.Diagnostics, fmt.Sprintf("assignment %s references missing rule %s", asg.ID, asg.RuleID))
			return day, nil
		}
		return schedule.Day{}, mapPlanningStoreError(err)
	}

	day := s.calculator.ComputeBaseDay(date, rule, &asg, anchor, cat)

	exceptions, err := s.exceptions.ListEffectiveExceptions(ctx, subjectID, date)
	if err != nil {
		return schedule.Day{}, mapPlanningStoreError(err)
	}
	day = schedule.ApplyExceptions(day, exceptions, map[string]string{subjectID: asg.TeamID})

	day.Diagnostics = append(day.Diagnostics, schedule.ValidateDay(day)...)
	return day, nil
}

// generateBoardDay resolves the team-agnostic view: the union of every rule's
// base day, with no exception resolution since exceptions are per subject.
func (s *ScheduleService) generateBoardDay(ctx context.Context, date time.Time, anchor time.Time, cat recurrence.Catalog) (schedule.Day, error) {
	rules, err := s.rules.ListRules(ctx)
	if err != nil {
		return schedule.Day{}, mapPlanningStoreError(err)
	}

	// -1 is the calculator's marker for "no cycle position"; keep it for days
	// no cycle rule ends up claiming.
	day := schedule.Day{Date: date, CycleOffset: -1}
	for _, rule := range rules {
		partial := s.calculator.ComputeBaseDay(date, rule, nil, anchor, cat)
		day = mergeDays(day, partial)
	}

	day.Diagnostics = append(day.Diagnostics, schedule.ValidateDay(day)...)
	return day, nil
}

// GetRange resolves every date in [start, end] inclusive. Dates are computed
// concurrently by a bounded worker pool; a failure on one date is recorded in
// its DayResult and never aborts the rest of the range. Results are returned
// in chronological order, one entry per date.
func (s *ScheduleService) GetRange(ctx context.Context, principal Principal, start, end time.Time, subjectID string) ([]DayResult, error) {
	if s == nil {
		return nil, fmt.Errorf("schedule service not configured")
	}
	start = schedule.NormalizeDate(start)
	end = schedule.NormalizeDate(end)
	if end.Before(start) {
		vErr := &ValidationError{}
		vErr.add("end", "end date must not precede start date")
		return nil, vErr
	}

	total := schedule.DaysBetween(start, end) + 1
	if total > maxRangeDays {
		vErr := &ValidationError{}
		vErr.add("range", fmt.Sprintf("range must not exceed %d days", maxRangeDays))
		return nil, vErr
	}

	results := make([]DayResult, total)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i := 0; i < total; i++ {
		i := i
		date := start.AddDate(0, 0, i)
		group.Go(func() error {
			day, err := s.dayThroughCache(groupCtx, date, subjectID)
			results[i] = DayResult{Date: date, Subject: subjectID, Day: day, Err: err}
			return nil
		})
	}
	// Workers always return nil; per-date failures live in the results.
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetMonth resolves every date of the given calendar month.
func (s *ScheduleService) GetMonth(ctx context.Context, principal Principal, year int, month time.Month, subjectID string) ([]DayResult, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return s.GetRange(ctx, principal, start, end, subjectID)
}

// GenerateEvents flattens the range into per-shift events, the shape calendar
// exports consume. Dates that failed to resolve are skipped; non-working days
// produce no events.
func (s *ScheduleService) GenerateEvents(ctx context.Context, principal Principal, start, end time.Time, subjectID string) ([]schedule.Event, error) {
	results, err := s.GetRange(ctx, principal, start, end, subjectID)
	if err != nil {
		return nil, err
	}

	var events []schedule.Event
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		for _, dayShift := range result.Day.Shifts {
			events = append(events, schedule.Event{
				Date:        result.Date,
				Shift:       dayShift.Shift,
				Teams:       append([]schedule.Team(nil), dayShift.Teams...),
				Subject:     subjectID,
				CycleOffset: result.Day.CycleOffset,
				Pattern:     result.Day.Pattern,
				Description: dayShift.Description,
			})
		}
	}
	return events, nil
}

// IsWorkingDay reports whether the given date is a working day. subjectID
// selects a personal view; a non-empty teamID narrows the answer to whether
// that team covers a shift on the date, resolved against the board view when
// no subject is given.
func (s *ScheduleService) IsWorkingDay(ctx context.Context, principal Principal, date time.Time, subjectID, teamID string) (bool, error) {
	day, err := s.GetDay(ctx, principal, date, subjectID)
	if err != nil {
		return false, err
	}
	if teamID != "" {
		return day.HasTeam(teamID), nil
	}
	return day.IsWorking(), nil
}

// WorkingDaysCount returns how many dates in [start, end] the subject works.
// A date that failed to resolve counts as neither working nor rest and is
// reported in the returned failure count.
func (s *ScheduleService) WorkingDaysCount(ctx context.Context, principal Principal, start, end time.Time, subjectID string) (working, failed int, err error) {
	results, err := s.GetRange(ctx, principal, start, end, subjectID)
	if err != nil {
		return 0, 0, err
	}
	for _, result := range results {
		switch {
		case result.Err != nil:
			failed++
		case result.Day.IsWorking():
			working++
		}
	}
	return working, failed, nil
}

// RestDaysCount returns how many dates in [start, end] the subject rests.
func (s *ScheduleService) RestDaysCount(ctx context.Context, principal Principal, start, end time.Time, subjectID string) (rest, failed int, err error) {
	results, err := s.GetRange(ctx, principal, start, end, subjectID)
	if err != nil {
		return 0, 0, err
	}
	for _, result := range results {
		switch {
		case result.Err != nil:
			failed++
		case !result.Day.IsWorking():
			rest++
		}
	}
	return rest, failed, nil
}

// SchemeAnchorDate returns the active scheme anchor, falling back to
// DefaultSchemeAnchor when none has been stored.
func (s *ScheduleService) SchemeAnchorDate(ctx context.Context, principal Principal) (time.Time, error) {
	return s.schemeAnchor(ctx)
}

// UpdateSchemeAnchorDate stores a new scheme anchor and purges the cache:
// the anchor shifts the cycle arithmetic of every generated day.
func (s *ScheduleService) UpdateSchemeAnchorDate(ctx context.Context, principal Principal, anchor time.Time) error {
	if s == nil || s.settings == nil {
		return fmt.Errorf("settings store not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if anchor.IsZero() {
		vErr := &ValidationError{}
		vErr.add("anchor_date", "anchor date is required")
		return vErr
	}

	logger := s.loggerWith(ctx, "UpdateSchemeAnchorDate",
		"principal_id", principal.UserID,
		"anchor_date", schedule.NormalizeDate(anchor).Format("2006-01-02"),
	)
	if err := s.settings.SetSchemeAnchorDate(ctx, schedule.NormalizeDate(anchor)); err != nil {
		err = mapPlanningStoreError(err)
		logger.ErrorContext(ctx, "failed to update scheme anchor", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	s.cache.Purge()
	logger.InfoContext(ctx, "scheme anchor updated")
	return nil
}

func (s *ScheduleService) dayThroughCache(ctx context.Context, date time.Time, subjectID string) (schedule.Day, error) {
	if day, ok := s.cache.Get(date, subjectID); ok {
		return day, nil
	}
	day, err := s.GenerateDay(ctx, date, subjectID)
	if err != nil {
		return schedule.Day{}, err
	}
	s.cache.Put(date, subjectID, day)
	return day, nil
}

func (s *ScheduleService) schemeAnchor(ctx context.Context) (time.Time, error) {
	if s.settings == nil {
		return DefaultSchemeAnchor, nil
	}
	anchor, err := s.settings.SchemeAnchorDate(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return DefaultSchemeAnchor, nil
		}
		return time.Time{}, mapPlanningStoreError(err)
	}
	return schedule.NormalizeDate(anchor), nil
}

func (s *ScheduleService) loadCatalog(ctx context.Context) (recurrence.Catalog, error) {
	teams, err := s.catalog.ListTeams(ctx)
	if err != nil {
		return recurrence.Catalog{}, mapPlanningStoreError(err)
	}
	shifts, err := s.catalog.ListShifts(ctx)
	if err != nil {
		return recurrence.Catalog{}, mapPlanningStoreError(err)
	}

	cat := recurrence.Catalog{
		Teams:  make(map[string]schedule.Team, len(teams)),
		Shifts: make(map[string]schedule.Shift, len(shifts)),
	}
	for _, team := range teams {
		cat.Teams[team.ID] = team
	}
	for _, shift := range shifts {
		cat.Shifts[shift.ID] = shift
	}
	return cat, nil
}

// mergeDays folds one rule's partial day into the accumulated board day.
// Shifts already present absorb the partial's teams; new shifts are appended
// and the result re-sorted so the union is order independent.
func mergeDays(acc, partial schedule.Day) schedule.Day {
	if partial.Pattern != "" && acc.Pattern == "" {
		acc.Pattern = partial.Pattern
		acc.CycleOffset = partial.CycleOffset
	}
	acc.Diagnostics = append(acc.Diagnostics, partial.Diagnostics...)

	for _, incoming := range partial.Shifts {
		merged := false
		for i, existing := range acc.Shifts {
			if existing.Shift.ID != incoming.Shift.ID {
				continue
			}
			for _, team := range incoming.Teams {
				if !hasTeamID(existing.Teams, team.ID) {
					acc.Shifts[i].Teams = append(acc.Shifts[i].Teams, team)
				}
			}
			merged = true
			break
		}
		if !merged {
			copied := incoming
			copied.Teams = append([]schedule.Team(nil), incoming.Teams...)
			acc.Shifts = append(acc.Shifts, copied)
		}
	}

	sort.Slice(acc.Shifts, func(i, j int) bool {
		if acc.Shifts[i].Shift.Start != acc.Shifts[j].Shift.Start {
			return acc.Shifts[i].Shift.Start < acc.Shifts[j].Shift.Start
		}
		return acc.Shifts[i].Shift.ID < acc.Shifts[j].Shift.ID
	})
	for i := range acc.Shifts {
		teams := acc.Shifts[i].Teams
		sort.Slice(teams, func(a, b int) bool { return teams[a].ID < teams[b].ID })
	}
	return acc
}

func hasTeamID(teams []schedule.Team, id string) bool {
	for _, team := range teams {
		if team.ID == id {
			return true
		}
	}
	return false
}
