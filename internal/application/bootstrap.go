package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvuzs3/qdue-server/internal/recurrence"
	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// Bootstrap seeds an empty installation with the standard rotation: nine
// teams, three shifts, and the 18-day continuous cycle in which every team
// works four days and rests two, with two teams covering each shift. Seeding
// is skipped entirely once any team exists, so restarts are idempotent.
type Bootstrap struct {
	teams  TeamStore
	shifts ShiftStore
	rules  RuleStore
	now    func() time.Time
	logger *slog.Logger
}

// NewBootstrap constructs the seeder.
func NewBootstrap(teams TeamStore, shifts ShiftStore, rules RuleStore, now func() time.Time, logger *slog.Logger) *Bootstrap {
	if now == nil {
		now = time.Now
	}
	return &Bootstrap{
		teams:  teams,
		shifts: shifts,
		rules:  rules,
		now:    now,
		logger: defaultLogger(logger),
	}
}

const standardCycleLength = 18

var standardTeamNames = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}

var standardShifts = []schedule.Shift{
	{ID: "shift-morning", Name: "Morning", Start: "05:00", End: "13:00"},
	{ID: "shift-afternoon", Name: "Afternoon", Start: "13:00", End: "21:00"},
	{ID: "shift-night", Name: "Night", Start: "21:00", End: "05:00"},
}

// Seed installs the default catalog and rotation when the store is empty.
func (b *Bootstrap) Seed(ctx context.Context) error {
	existing, err := b.teams.ListTeams(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: list teams: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	logger := serviceLogger(ctx, b.logger, "Bootstrap", "Seed")

	for _, name := range standardTeamNames {
		team := schedule.Team{
			ID:     "team-" + name,
			Name:   name,
			Type:   schedule.TeamTypeCycle,
			Active: true,
		}
		if err := b.teams.CreateTeam(ctx, team); err != nil {
			return fmt.Errorf("bootstrap: create team %s: %w", name, err)
		}
	}

	for _, shift := range standardShifts {
		if err := b.shifts.CreateShift(ctx, shift); err != nil {
			return fmt.Errorf("bootstrap: create shift %s: %w", shift.Name, err)
		}
	}

	rule := recurrence.Rule{
		ID:           "rule-standard-cycle",
		Name:         "Standard 18-day rotation",
		Frequency:    recurrence.FrequencyCycle,
		Interval:     1,
		AnchorDate:   DefaultSchemeAnchor,
		CycleLength:  standardCycleLength,
		CycleOffsets: standardCycleOffsets(),
		CreatedAt:    b.now().UTC(),
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("bootstrap: standard rule: %w", err)
	}
	if err := b.rules.CreateRule(ctx, rule); err != nil {
		return fmt.Errorf("bootstrap: create rule: %w", err)
	}

	logger.InfoContext(ctx, "seeded default catalog and rotation",
		"teams", len(standardTeamNames),
		"shifts", len(standardShifts),
		"cycle_length", standardCycleLength,
	)
	return nil
}

// standardCycleOffsets derives the slot table of the continuous rotation.
// Team t is staggered two days behind team t-1; within its own 18-day frame
// it works blocks of four days and rests two, rotating through morning,
// afternoon, and night as the blocks advance.
func standardCycleOffsets() map[int][]recurrence.Slot {
	offsets := make(map[int][]recurrence.Slot, standardCycleLength)
	for day := 0; day < standardCycleLength; day++ {
		for t, name := range standardTeamNames {
			k := mod(day-2*t, standardCycleLength)
			if mod(k, 6) >= 4 {
				continue // rest day
			}
			block := k / 6
			pos := mod(k, 6)
			shift := standardShifts[mod(block+pos/2, len(standardShifts))]
			offsets[day] = appendSlotTeam(offsets[day], shift.ID, "team-"+name)
		}
	}
	return offsets
}

func appendSlotTeam(slots []recurrence.Slot, shiftID, teamID string) []recurrence.Slot {
	for i, slot := range slots {
		if slot.ShiftID == shiftID {
			slots[i].TeamIDs = append(slots[i].TeamIDs, teamID)
			return slots
		}
	}
	return append(slots, recurrence.Slot{ShiftID: shiftID, TeamIDs: []string{teamID}})
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
