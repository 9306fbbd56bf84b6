package testfixtures

import (
	"testing"
	"time"
)

func TestClockZeroStartUsesReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockSetAndAdvance(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	landed := clock.Advance(90 * time.Minute)
	if !landed.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance landed at %v", landed)
	}

	clock.Set(start.Add(2 * time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}
}

func TestClockNowFuncTracksTheClock(t *testing.T) {
	clock := NewClock(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	now := clock.NowFunc()

	before := now()
	clock.Advance(time.Minute)
	after := now()

	if !after.Equal(before.Add(time.Minute)) {
		t.Fatalf("expected the injected func to follow the clock, got %v then %v", before, after)
	}
}
