package recurrence

import (
	"log/slog"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// Catalog carries the shift and team referents a computation may resolve.
// The façade prefetches both before invoking the calculator, keeping the
// computation itself free of I/O.
type Catalog struct {
	Shifts map[string]schedule.Shift
	Teams  map[string]schedule.Team
}

// Calculator evaluates recurrence rules into base day schedules. It is
// stateless apart from its logger and safe for concurrent use.
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator constructs a calculator. A nil logger falls back to the
// process default.
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger}
}

// ComputeBaseDay produces the base schedule for a single date under the given
// rule. When asg is non-nil the result is filtered to shifts that include the
// assignment's team; a nil asg is a team-agnostic query returning every
// active shift for the date. anchor is the scheme anchor date governing cycle
// offset arithmetic.
//
// A date preceding the assignment's validity window yields an empty day: not
// yet assigned is a valid, non-exceptional outcome. Malformed rules likewise
// degrade to an empty day, logged as a configuration fault, so range
// generation never aborts over one bad rule.
func (c *Calculator) ComputeBaseDay(date time.Time, rule Rule, asg *Assignment, anchor time.Time, cat Catalog) schedule.Day {
	date = schedule.NormalizeDate(date)
	day := schedule.Day{Date: date, CycleOffset: -1, Pattern: rule.Name}

	if asg != nil && !asg.ActiveOn(date) {
		return day
	}

	if err := rule.Validate(); err != nil {
		c.logger.Warn("recurrence rule rejected", "rule_id", rule.ID, "error", err)
		return day
	}

	var slots []Slot
	switch rule.Frequency {
	case FrequencyCycle:
		offset := CycleOffset(date, anchor, rule.CycleLength)
		day.CycleOffset = offset
		slots = rule.CycleOffsets[offset]
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		if !c.occursOn(rule, date) {
			return day
		}
		slots = rule.Slots
	case FrequencyUnspecified:
		// unreachable: Validate rejects it above
		return day
	}

	for _, slot := range slots {
		entry, ok := c.materialize(rule.ID, slot, cat)
		if !ok {
			continue
		}
		if asg != nil && asg.TeamID != "" && !containsTeam(entry.Teams, asg.TeamID) {
			continue
		}
		day.Shifts = append(day.Shifts, entry)
	}

	sort.SliceStable(day.Shifts, func(i, j int) bool {
		if day.Shifts[i].Shift.Start == day.Shifts[j].Shift.Start {
			return day.Shifts[i].Shift.ID < day.Shifts[j].Shift.ID
		}
		return day.Shifts[i].Shift.Start < day.Shifts[j].Shift.Start
	})

	return day
}

// CycleOffset returns the zero-based position of date within a cycle of the
// given length anchored at anchor. Dates before the anchor produce a negative
// remainder which is normalized into [0, length), so pre-anchor dates resolve
// through the same arithmetic as any other date.
func CycleOffset(date, anchor time.Time, length int) int {
	if length <= 0 {
		return 0
	}
	offset := schedule.DaysBetween(anchor, date) % length
	if offset < 0 {
		offset += length
	}
	return offset
}

// occursOn reports whether a calendar-frequency rule fires on the date. The
// period matching is delegated to the RFC 5545 recurrence expansion.
func (c *Calculator) occursOn(rule Rule, date time.Time) bool {
	var freq rrule.Frequency
	switch rule.Frequency {
	case FrequencyDaily:
		freq = rrule.DAILY
	case FrequencyWeekly:
		freq = rrule.WEEKLY
	case FrequencyMonthly:
		freq = rrule.MONTHLY
	default:
		return false
	}

	interval := rule.Interval
	if interval == 0 {
		interval = 1
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Dtstart:  schedule.NormalizeDate(rule.AnchorDate),
	})
	if err != nil {
		c.logger.Warn("recurrence rule rejected", "rule_id", rule.ID, "error", err)
		return false
	}

	dayEnd := date.Add(24*time.Hour - time.Nanosecond)
	return len(r.Between(date, dayEnd, true)) > 0
}

// materialize resolves a slot's shift and team ids against the catalog.
// Unresolvable referents are logged and skipped rather than failing the day.
func (c *Calculator) materialize(ruleID string, slot Slot, cat Catalog) (schedule.DayShift, bool) {
	shift, ok := cat.Shifts[slot.ShiftID]
	if !ok {
		c.logger.Warn("slot references unknown shift", "rule_id", ruleID, "shift_id", slot.ShiftID)
		return schedule.DayShift{}, false
	}

	teams := make([]schedule.Team, 0, len(slot.TeamIDs))
	for _, teamID := range slot.TeamIDs {
		team, found := cat.Teams[teamID]
		if !found {
			c.logger.Warn("slot references unknown team", "rule_id", ruleID, "team_id", teamID)
			continue
		}
		if !team.Active {
			continue
		}
		teams = append(teams, team)
	}
	if len(teams) == 0 {
		return schedule.DayShift{}, false
	}

	return schedule.DayShift{Shift: shift, Teams: teams}, true
}

func containsTeam(teams []schedule.Team, teamID string) bool {
	for _, team := range teams {
		if team.ID == teamID {
			return true
		}
	}
	return false
}
