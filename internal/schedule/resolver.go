package schedule

import (
	"fmt"
	"sort"
)

// ApplyExceptions overlays effective exceptions onto a base day and returns
// the corrected day. subjectTeams maps each subject to the team id their
// assignment binds them to on this date.
//
// Resolution is deterministic and idempotent: exceptions are re-checked
// against the day's date, grouped by subject, and only the winning exception
// per subject is applied (priority descending, creation time ascending as the
// tie-break, id as the final tie-break). Losing exceptions are reported in the
// returned day's Diagnostics as superseded rather than applied, keeping the
// outcome independent of input order.
func ApplyExceptions(base Day, exceptions []Exception, subjectTeams map[string]string) Day {
	day := base.Clone()
	if len(exceptions) == 0 {
		return day
	}

	bySubject := make(map[string][]Exception)
	subjects := make([]string, 0, len(exceptions))
	for _, exc := range exceptions {
		if exc.Kind == ExceptionUnspecified || !exc.EffectiveOn(day.Date) {
			continue
		}
		if _, seen := bySubject[exc.SubjectID]; !seen {
			subjects = append(subjects, exc.SubjectID)
		}
		bySubject[exc.SubjectID] = append(bySubject[exc.SubjectID], exc)
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		group := bySubject[subject]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Priority != group[j].Priority {
				return group[i].Priority > group[j].Priority
			}
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})

		winner := group[0]
		for _, superseded := range group[1:] {
			day.Diagnostics = append(day.Diagnostics, fmt.Sprintf(
				"exception %s (%s, priority %d) superseded by %s for subject %s",
				superseded.ID, superseded.Kind, superseded.Priority, winner.ID, subject))
		}

		teamID, ok := subjectTeams[subject]
		if !ok || teamID == "" {
			day.Diagnostics = append(day.Diagnostics, fmt.Sprintf(
				"exception %s skipped: no team mapping for subject %s", winner.ID, subject))
			continue
		}

		switch winner.Kind {
		case ExceptionAbsence:
			day.Shifts = removeTeam(day.Shifts, teamID)
		case ExceptionShiftChange:
			day.Shifts = moveTeam(day.Shifts, teamID, winner)
		case ExceptionTimeReduction:
			day.Shifts = annotateTeam(day.Shifts, teamID, winner)
		case ExceptionUnspecified:
			// filtered above; listed to keep the switch exhaustive
		}
	}

	day.Shifts = dropEmptyShifts(day.Shifts)
	return day
}

// removeTeam strips the team from every shift of the day.
func removeTeam(shifts []DayShift, teamID string) []DayShift {
	out := make([]DayShift, 0, len(shifts))
	for _, shift := range shifts {
		teams := make([]Team, 0, len(shift.Teams))
		for _, team := range shift.Teams {
			if team.ID != teamID {
				teams = append(teams, team)
			}
		}
		shift.Teams = teams
		out = append(out, shift)
	}
	return out
}

// moveTeam relocates the team onto the exception's designated shift, leaving
// every other team's coverage untouched. Without a designated shift the
// exception has nothing to move to and the day is returned unchanged.
func moveTeam(shifts []DayShift, teamID string, exc Exception) []DayShift {
	if exc.TargetShift == nil {
		return shifts
	}

	var moved *Team
	for _, shift := range shifts {
		for _, team := range shift.Teams {
			if team.ID == teamID {
				copied := team
				moved = &copied
				break
			}
		}
		if moved != nil {
			break
		}
	}
	if moved == nil {
		return shifts
	}

	out := removeTeam(shifts, teamID)
	for i, shift := range out {
		if shift.Shift.ID == exc.TargetShift.ID {
			out[i].Teams = append(out[i].Teams, *moved)
			return out
		}
	}
	return append(out, DayShift{
		Shift: *exc.TargetShift,
		Teams: []Team{*moved},
	})
}

// annotateTeam attaches the reduced-duration note to every shift the team
// covers. The shift itself is retained; the annotation is non-destructive.
func annotateTeam(shifts []DayShift, teamID string, exc Exception) []DayShift {
	note := fmt.Sprintf("reduced by %d min", exc.ReducedMinutes)
	if exc.Note != "" {
		note = fmt.Sprintf("%s (%s)", note, exc.Note)
	}
	for i, shift := range shifts {
		for _, team := range shift.Teams {
			if team.ID != teamID {
				continue
			}
			if shifts[i].Description != "" {
				shifts[i].Description += "; " + note
			} else {
				shifts[i].Description = note
			}
			break
		}
	}
	return shifts
}

func dropEmptyShifts(shifts []DayShift) []DayShift {
	out := make([]DayShift, 0, len(shifts))
	for _, shift := range shifts {
		if len(shift.Teams) > 0 {
			out = append(out, shift)
		}
	}
	return out
}
