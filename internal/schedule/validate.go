package schedule

import "fmt"

// ValidateDay checks the structural invariants of a resolved day: shifts must
// be unique by shift identity and a team must not cover two shifts at once.
// Findings are returned as diagnostics; a day that fails validation is still
// usable, so range generation never aborts over a single bad date.
func ValidateDay(day Day) []string {
	var findings []string

	seenShifts := make(map[string]struct{}, len(day.Shifts))
	teamShift := make(map[string]string)

	for _, shift := range day.Shifts {
		if _, dup := seenShifts[shift.Shift.ID]; dup {
			findings = append(findings, fmt.Sprintf("duplicate shift %s", shift.Shift.ID))
		}
		seenShifts[shift.Shift.ID] = struct{}{}

		for _, team := range shift.Teams {
			if prev, ok := teamShift[team.ID]; ok && prev != shift.Shift.ID {
				findings = append(findings, fmt.Sprintf(
					"team %s assigned to overlapping shifts %s and %s", team.ID, prev, shift.Shift.ID))
				continue
			}
			teamShift[team.ID] = shift.Shift.ID
		}
	}

	return findings
}
