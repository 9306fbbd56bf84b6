package schedule

import "time"

// TeamType distinguishes the built-in rotation teams from ad-hoc groups.
type TeamType string

const (
	// TeamTypeCycle marks one of the standard teams participating in the rotation.
	TeamTypeCycle TeamType = "cycle"
	// TeamTypeAdHoc marks a team created outside the standard rotation.
	TeamTypeAdHoc TeamType = "adhoc"
)

// Team is a named group of workers referenced by shifts. Teams are referents
// only; the schedule core never owns or mutates them.
type Team struct {
	ID     string
	Name   string
	Type   TeamType
	Active bool
}

// Shift is a named shift template with its timing metadata. Start and End use
// the "15:04" clock format; a shift whose End precedes Start crosses midnight.
type Shift struct {
	ID    string
	Name  string
	Start string
	End   string
}

// DayShift is one shift occurrence within a day: the shift template, the teams
// covering it, and an optional free-text annotation.
type DayShift struct {
	Shift       Shift
	Teams       []Team
	Description string
}

// Day is the resolved work schedule for a single calendar date. An empty
// Shifts slice represents a non-working day. Diagnostics carries non-fatal
// findings (validation issues, superseded exceptions) surfaced alongside the
// result instead of failing it.
type Day struct {
	Date        time.Time
	Shifts      []DayShift
	CycleOffset int
	Pattern     string
	Diagnostics []string
}

// Event is the externally consumable flattening of one DayShift occurrence.
// It is produced at the repository boundary and never consumed internally.
type Event struct {
	Date        time.Time
	Shift       Shift
	Teams       []Team
	Subject     string
	CycleOffset int
	Pattern     string
	Description string
}

// IsWorking reports whether the day carries at least one staffed shift.
func (d Day) IsWorking() bool {
	return len(d.Shifts) > 0
}

// HasTeam reports whether the given team covers any shift on the day.
func (d Day) HasTeam(teamID string) bool {
	for _, shift := range d.Shifts {
		for _, team := range shift.Teams {
			if team.ID == teamID {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy so cached values stay independent of callers.
func (d Day) Clone() Day {
	out := d
	if len(d.Shifts) > 0 {
		out.Shifts = make([]DayShift, len(d.Shifts))
		for i, shift := range d.Shifts {
			copied := shift
			copied.Teams = append([]Team(nil), shift.Teams...)
			out.Shifts[i] = copied
		}
	}
	out.Diagnostics = append([]string(nil), d.Diagnostics...)
	return out
}

// NormalizeDate truncates a timestamp to its civil date, anchored at midnight
// UTC. All date arithmetic in the schedule core happens on normalized dates.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from a to b. Both
// arguments are normalized before subtraction, so the result is exact.
func DaysBetween(a, b time.Time) int {
	return int(NormalizeDate(b).Sub(NormalizeDate(a)) / (24 * time.Hour))
}
