package recurrence

import (
	"errors"
	"time"

	"github.com/calvuzs3/qdue-server/internal/schedule"
)

// Frequency represents supported recurrence patterns.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily matches every Interval days from the rule anchor.
	FrequencyDaily
	// FrequencyWeekly matches every Interval weeks from the rule anchor.
	FrequencyWeekly
	// FrequencyMonthly matches the anchor's day of month every Interval months.
	FrequencyMonthly
	// FrequencyCycle is a fixed-length repeating pattern independent of week
	// and month boundaries, anchored to the process-wide scheme anchor date.
	FrequencyCycle
)

// String returns a stable label for storage and logging.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	case FrequencyMonthly:
		return "monthly"
	case FrequencyCycle:
		return "cycle"
	default:
		return "unspecified"
	}
}

// ParseFrequency maps a wire label back to its frequency. Unknown labels yield
// FrequencyUnspecified.
func ParseFrequency(label string) Frequency {
	switch label {
	case "daily":
		return FrequencyDaily
	case "weekly":
		return FrequencyWeekly
	case "monthly":
		return FrequencyMonthly
	case "cycle":
		return FrequencyCycle
	default:
		return FrequencyUnspecified
	}
}

// Slot names the shift a set of teams covers when a rule fires.
type Slot struct {
	ShiftID string
	TeamIDs []string
}

// Rule describes a repeating shift pattern. Rules are immutable once created
// and are referenced by assignments through their id.
//
// Calendar frequencies (daily, weekly, monthly) use AnchorDate and Interval to
// decide whether a date is an occurrence, and Slots for the composition on
// matching dates. Cycle rules instead define, for each offset in
// [0, CycleLength), which slots are active; the cycle is anchored to the
// scheme anchor date supplied at computation time.
type Rule struct {
	ID           string
	Name         string
	Frequency    Frequency
	Interval     int
	AnchorDate   time.Time
	Slots        []Slot
	CycleLength  int
	CycleOffsets map[int][]Slot
	CreatedAt    time.Time
}

var (
	// ErrInvalidFrequency indicates the rule frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidInterval indicates a non-positive recurrence interval.
	ErrInvalidInterval = errors.New("recurrence: interval must be positive")
	// ErrMissingAnchor indicates a calendar rule without an anchor date.
	ErrMissingAnchor = errors.New("recurrence: calendar rule requires an anchor date")
	// ErrInvalidCycleLength indicates a cycle rule with a non-positive length.
	ErrInvalidCycleLength = errors.New("recurrence: cycle length must be positive")
	// ErrEmptyCycle indicates a cycle rule without any offset definitions.
	ErrEmptyCycle = errors.New("recurrence: cycle rule defines no offsets")
	// ErrOffsetOutOfRange indicates a cycle offset outside [0, cycle length).
	ErrOffsetOutOfRange = errors.New("recurrence: cycle offset out of range")
)

// Validate reports whether the rule is structurally sound. The calculator
// treats a validation failure as a configuration fault and degrades to an
// empty day instead of propagating it.
func (r Rule) Validate() error {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		if r.AnchorDate.IsZero() {
			return ErrMissingAnchor
		}
		if r.Interval < 0 {
			return ErrInvalidInterval
		}
		return nil
	case FrequencyCycle:
		if r.CycleLength <= 0 {
			return ErrInvalidCycleLength
		}
		if len(r.CycleOffsets) == 0 {
			return ErrEmptyCycle
		}
		for offset := range r.CycleOffsets {
			if offset < 0 || offset >= r.CycleLength {
				return ErrOffsetOutOfRange
			}
		}
		return nil
	case FrequencyUnspecified:
		fallthrough
	default:
		return ErrInvalidFrequency
	}
}

// Assignment binds a subject to a team and a recurrence rule for a validity
// window. Reassignment supersedes the previous row by closing its EndDate;
// assignments are never mutated in place or physically deleted while history
// references them.
type Assignment struct {
	ID        string
	SubjectID string
	TeamID    string
	RuleID    string
	StartDate time.Time
	EndDate   *time.Time
	CreatedAt time.Time
}

// ActiveOn reports whether the assignment's validity window covers the date.
func (a Assignment) ActiveOn(date time.Time) bool {
	date = schedule.NormalizeDate(date)
	if date.Before(schedule.NormalizeDate(a.StartDate)) {
		return false
	}
	if a.EndDate != nil && date.After(schedule.NormalizeDate(*a.EndDate)) {
		return false
	}
	return true
}
