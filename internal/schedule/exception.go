package schedule

import "time"

// ExceptionKind enumerates the supported schedule override kinds. The resolver
// matches on it exhaustively so new kinds cannot be silently ignored.
type ExceptionKind int

const (
	// ExceptionUnspecified indicates the kind is not set; such exceptions are discarded.
	ExceptionUnspecified ExceptionKind = iota
	// ExceptionAbsence removes the subject's team from every shift of the day.
	ExceptionAbsence
	// ExceptionShiftChange moves the subject's team onto a designated shift.
	ExceptionShiftChange
	// ExceptionTimeReduction keeps the shift but annotates it with reduced hours.
	ExceptionTimeReduction
)

// String returns a stable label for logging and event payloads.
func (k ExceptionKind) String() string {
	switch k {
	case ExceptionAbsence:
		return "absence"
	case ExceptionShiftChange:
		return "shift_change"
	case ExceptionTimeReduction:
		return "time_reduction"
	default:
		return "unspecified"
	}
}

// ParseExceptionKind maps a wire label back to its kind. Unknown labels yield
// ExceptionUnspecified.
func ParseExceptionKind(label string) ExceptionKind {
	switch label {
	case "absence":
		return ExceptionAbsence
	case "shift_change":
		return ExceptionShiftChange
	case "time_reduction":
		return ExceptionTimeReduction
	default:
		return ExceptionUnspecified
	}
}

// Exception is a date-scoped override for one subject. Exceptions reach the
// resolver only after upstream approval; the core consumes them as facts.
// StartDate and EndDate bound the effective range, both inclusive.
type Exception struct {
	ID             string
	SubjectID      string
	Kind           ExceptionKind
	Priority       int
	StartDate      time.Time
	EndDate        time.Time
	TargetShift    *Shift
	ReducedMinutes int
	Note           string
	CreatedAt      time.Time
}

// EffectiveOn reports whether the exception's range covers the given date.
func (e Exception) EffectiveOn(date time.Time) bool {
	date = NormalizeDate(date)
	if date.Before(NormalizeDate(e.StartDate)) {
		return false
	}
	if !e.EndDate.IsZero() && date.After(NormalizeDate(e.EndDate)) {
		return false
	}
	return true
}
