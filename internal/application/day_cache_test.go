package application

import (
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/schedule"
)

func cachedDayFixture(date time.Time) schedule.Day {
	return schedule.Day{
		Date: date,
		Shifts: []schedule.DayShift{
			{
				Shift: schedule.Shift{ID: "shift-morning", Start: "05:00", End: "13:00"},
				Teams: []schedule.Team{{ID: "team-a", Name: "A", Active: true}},
			},
		},
	}
}

func TestDayCache_PutAndGet(t *testing.T) {
	cache := NewDayCache(16, time.Minute)
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	if _, ok := cache.Get(date, "user-1"); ok {
		t.Fatalf("empty cache must miss")
	}

	cache.Put(date, "user-1", cachedDayFixture(date))

	got, ok := cache.Get(date, "user-1")
	if !ok {
		t.Fatalf("expected a hit after Put")
	}
	if len(got.Shifts) != 1 || got.Shifts[0].Shift.ID != "shift-morning" {
		t.Fatalf("cached day does not match what was stored: %+v", got)
	}

	if _, ok := cache.Get(date, "user-2"); ok {
		t.Fatalf("entries must be keyed per subject")
	}
	if _, ok := cache.Get(date.AddDate(0, 0, 1), "user-1"); ok {
		t.Fatalf("entries must be keyed per date")
	}
}

func TestDayCache_BoardViewSharesOneKey(t *testing.T) {
	cache := NewDayCache(16, time.Minute)
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	cache.Put(date, "", cachedDayFixture(date))
	if _, ok := cache.Get(date, ""); !ok {
		t.Fatalf("the board view must be cacheable under the empty subject")
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one entry, got %d", cache.Len())
	}
}

func TestDayCache_CopiesOnBothSides(t *testing.T) {
	cache := NewDayCache(16, time.Minute)
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	stored := cachedDayFixture(date)
	cache.Put(date, "user-1", stored)
	stored.Shifts[0].Teams[0].Name = "mutated after put"

	first, _ := cache.Get(date, "user-1")
	if first.Shifts[0].Teams[0].Name != "A" {
		t.Fatalf("mutating the caller's day after Put leaked into the cache")
	}

	first.Shifts[0].Teams[0].Name = "mutated after get"
	second, _ := cache.Get(date, "user-1")
	if second.Shifts[0].Teams[0].Name != "A" {
		t.Fatalf("mutating a returned day leaked into the cache")
	}
}

func TestDayCache_Purge(t *testing.T) {
	cache := NewDayCache(16, time.Minute)
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	cache.Put(date, "user-1", cachedDayFixture(date))
	cache.Put(date, "user-2", cachedDayFixture(date))
	cache.Purge()

	if cache.Len() != 0 {
		t.Fatalf("expected an empty cache after Purge, got %d entries", cache.Len())
	}
	if _, ok := cache.Get(date, "user-1"); ok {
		t.Fatalf("purged entries must not be served")
	}
}

func TestDayCache_NilSafe(t *testing.T) {
	var cache *DayCache
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	cache.Put(date, "user-1", cachedDayFixture(date))
	if _, ok := cache.Get(date, "user-1"); ok {
		t.Fatalf("a nil cache must behave as always empty")
	}
	cache.Purge()
	if cache.Len() != 0 {
		t.Fatalf("a nil cache has no entries")
	}
}
