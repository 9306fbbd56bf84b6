package schedule

import (
	"testing"
	"time"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "strips the time of day",
			in:   time.Date(2024, time.March, 5, 14, 30, 12, 99, time.UTC),
			want: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "converts zoned timestamps to UTC first",
			in:   time.Date(2024, time.March, 5, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			want: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "midnight UTC is a fixed point",
			in:   time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeDate(tc.in); !got.Equal(tc.want) {
				t.Fatalf("NormalizeDate(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2018, time.November, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		b    time.Time
		want int
	}{
		{"same day", a, 0},
		{"forward", a.AddDate(0, 0, 18), 18},
		{"backward", a.AddDate(0, 0, -1), -1},
		{"time of day is irrelevant", a.Add(47 * time.Hour), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DaysBetween(a, tc.b); got != tc.want {
				t.Fatalf("DaysBetween = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDay_Clone(t *testing.T) {
	original := Day{
		Date: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		Shifts: []DayShift{
			{
				Shift: Shift{ID: "shift-morning", Start: "05:00", End: "13:00"},
				Teams: []Team{{ID: "team-a", Name: "A"}},
			},
		},
		Diagnostics: []string{"note"},
	}

	clone := original.Clone()
	clone.Shifts[0].Teams[0].Name = "mutated"
	clone.Shifts[0].Description = "mutated"
	clone.Diagnostics[0] = "mutated"

	if original.Shifts[0].Teams[0].Name != "A" {
		t.Fatalf("mutating the clone's teams leaked into the original")
	}
	if original.Shifts[0].Description != "" {
		t.Fatalf("mutating the clone's shift leaked into the original")
	}
	if original.Diagnostics[0] != "note" {
		t.Fatalf("mutating the clone's diagnostics leaked into the original")
	}
}

func TestDay_HasTeam(t *testing.T) {
	day := Day{
		Shifts: []DayShift{
			{Shift: Shift{ID: "shift-morning"}, Teams: []Team{{ID: "team-a"}}},
		},
	}

	if !day.HasTeam("team-a") {
		t.Fatalf("expected team-a to be present")
	}
	if day.HasTeam("team-b") {
		t.Fatalf("team-b is not on the day")
	}
	if (Day{}).IsWorking() {
		t.Fatalf("a day without shifts must not be working")
	}
}

func TestException_EffectiveOn(t *testing.T) {
	exc := Exception{
		StartDate: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"before the range", time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), false},
		{"first day inclusive", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), true},
		{"last day inclusive", time.Date(2024, time.March, 7, 23, 0, 0, 0, time.UTC), true},
		{"after the range", time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := exc.EffectiveOn(tc.date); got != tc.want {
				t.Fatalf("EffectiveOn(%v) = %v, want %v", tc.date, got, tc.want)
			}
		})
	}

	t.Run("zero end date never expires", func(t *testing.T) {
		open := Exception{StartDate: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)}
		if !open.EffectiveOn(time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("open-ended exception must stay effective")
		}
	})
}

func TestParseExceptionKind(t *testing.T) {
	tests := []struct {
		label string
		want  ExceptionKind
	}{
		{"absence", ExceptionAbsence},
		{"shift_change", ExceptionShiftChange},
		{"time_reduction", ExceptionTimeReduction},
		{"holiday", ExceptionUnspecified},
		{"", ExceptionUnspecified},
	}
	for _, tc := range tests {
		if got := ParseExceptionKind(tc.label); got != tc.want {
			t.Fatalf("ParseExceptionKind(%q) = %v, want %v", tc.label, got, tc.want)
		}
	}
}
