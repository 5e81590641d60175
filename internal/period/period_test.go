package period

import (
	"testing"
	"time"
)

func TestDayKeyUsesZonedCalendar(t *testing.T) {
	// 20:00 UTC is already the next day at UTC+05:30.
	key, err := DayKey(FixedOffset(330), time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DayKey failed: %v", err)
	}
	if key != "2024-05-02" {
		t.Errorf("Expected 2024-05-02, got %s", key)
	}
}

func TestCurrentDayKeyRollsOverAfterDue(t *testing.T) {
	zone := FixedOffset(0)

	before, err := CurrentDayKey(zone, "18:00", time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CurrentDayKey failed: %v", err)
	}
	if before != "2024-05-01" {
		t.Errorf("Expected 2024-05-01 before the due moment, got %s", before)
	}

	// Exactly at the due moment the window has already rolled over.
	at, err := CurrentDayKey(zone, "18:00", time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CurrentDayKey failed: %v", err)
	}
	if at != "2024-05-02" {
		t.Errorf("Expected 2024-05-02 at the due moment, got %s", at)
	}
}

func TestCurrentDayKeyMonotonicAcrossSpringForward(t *testing.T) {
	// Keys must never move backwards as now advances, DST transition included.
	zone := IanaZone("America/New_York")

	start := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	prev := ""
	for i := 0; i < 48; i++ {
		now := start.Add(time.Duration(i) * time.Hour)
		key, err := CurrentDayKey(zone, "21:00", now)
		if err != nil {
			t.Fatalf("CurrentDayKey failed at %v: %v", now, err)
		}
		if key < prev {
			t.Fatalf("Key went backwards at %v: %s < %s", now, key, prev)
		}
		prev = key
	}
}

func TestWeekKeyFindsMostRecentWeekStart(t *testing.T) {
	zone := FixedOffset(0)

	// 2024-05-01 is a Wednesday; with Monday starts the key is 2024-04-29.
	key, err := WeekKey(zone, 1, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WeekKey failed: %v", err)
	}
	if key != "2024-04-29" {
		t.Errorf("Expected 2024-04-29, got %s", key)
	}

	// On the week-start day itself the key is that same day.
	key, err = WeekKey(zone, 1, time.Date(2024, 4, 29, 0, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("WeekKey failed: %v", err)
	}
	if key != "2024-04-29" {
		t.Errorf("Expected 2024-04-29 on the week start, got %s", key)
	}
}

func TestDueMomentWeeklyFallsOnLastDay(t *testing.T) {
	due, err := DueMoment(FixedOffset(0), "2024-04-29", "20:00", UnitWeekly)
	if err != nil {
		t.Fatalf("DueMoment failed: %v", err)
	}

	want := time.Date(2024, 5, 5, 20, 0, 0, 0, time.UTC)
	if !due.Equal(want) {
		t.Errorf("Expected %v, got %v", want, due)
	}
}

func TestPreviousKeys(t *testing.T) {
	zone := FixedOffset(0)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	day, err := PreviousDayKey(zone, "18:00", now)
	if err != nil {
		t.Fatalf("PreviousDayKey failed: %v", err)
	}
	if day != "2024-04-30" {
		t.Errorf("Expected 2024-04-30, got %s", day)
	}

	week, err := PreviousWeekKey(zone, 1, now)
	if err != nil {
		t.Fatalf("PreviousWeekKey failed: %v", err)
	}
	if week != "2024-04-22" {
		t.Errorf("Expected 2024-04-22, got %s", week)
	}
}

func TestDuePassed(t *testing.T) {
	zone := FixedOffset(0)

	passed, err := DuePassed(zone, "2024-05-01", "18:00", UnitDaily, time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DuePassed failed: %v", err)
	}
	if !passed {
		t.Error("Expected due to have passed at the due moment")
	}

	passed, err = DuePassed(zone, "2024-05-01", "18:00", UnitDaily, time.Date(2024, 5, 1, 17, 59, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DuePassed failed: %v", err)
	}
	if passed {
		t.Error("Expected due not to have passed one minute early")
	}
}

func TestDayDiff(t *testing.T) {
	diff, err := DayDiff("2024-02-28", "2024-03-01")
	if err != nil {
		t.Fatalf("DayDiff failed: %v", err)
	}
	if diff != 2 {
		t.Errorf("Expected 2 across the leap day, got %d", diff)
	}

	diff, err = DayDiff("2024-05-02", "2024-05-01")
	if err != nil {
		t.Fatalf("DayDiff failed: %v", err)
	}
	if diff != -1 {
		t.Errorf("Expected -1 going backwards, got %d", diff)
	}

	if _, err := DayDiff("not-a-key", "2024-05-01"); err == nil {
		t.Error("Expected error for malformed key")
	}
}

func TestZoneSpecString(t *testing.T) {
	if got := IanaZone("Europe/Sofia").String(); got != "Europe/Sofia" {
		t.Errorf("Unexpected zone string %s", got)
	}
	if got := FixedOffset(-300).String(); got != "UTC-300m" {
		t.Errorf("Unexpected fixed offset string %s", got)
	}
}
