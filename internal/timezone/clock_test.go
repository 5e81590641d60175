package timezone

import (
	"testing"
	"time"
)

func mustLocation(t *testing.T, zone string) *time.Location {
	t.Helper()
	loc, err := Location(zone)
	if err != nil {
		t.Fatalf("Failed to load zone %s: %v", zone, err)
	}
	return loc
}

func TestWallClockRoundTrip(t *testing.T) {
	tokyo := mustLocation(t, "Asia/Tokyo")

	got, err := WallClockToUTC("2024-06-15", "09:00", tokyo)
	if err != nil {
		t.Fatalf("WallClockToUTC failed: %v", err)
	}

	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	c := WallClockInZone(got, tokyo)
	if c.Hour != 9 || c.Minute != 0 || c.Day != 15 {
		t.Errorf("Round trip lost the wall clock: %+v", c)
	}
}

func TestWallClockToUTCAfterSpringForward(t *testing.T) {
	// 2024-03-10 is the US spring-forward date: the zone offset at start of
	// day differs from the offset at the target time, forcing the second pass.
	ny := mustLocation(t, "America/New_York")

	got, err := WallClockToUTC("2024-03-10", "22:00", ny)
	if err != nil {
		t.Fatalf("WallClockToUTC failed: %v", err)
	}

	want := time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	c := WallClockInZone(got, ny)
	if c.Day != 10 || c.Hour != 22 {
		t.Errorf("Expected local 22:00 on the 10th, got %+v", c)
	}
}

func TestWallClockToUTCInsideGap(t *testing.T) {
	// 02:30 local does not exist on 2024-03-10 in New York. The conversion
	// must still return a deterministic instant instead of failing.
	ny := mustLocation(t, "America/New_York")

	got, err := WallClockToUTC("2024-03-10", "02:30", ny)
	if err != nil {
		t.Fatalf("WallClockToUTC failed: %v", err)
	}

	want := time.Date(2024, 3, 10, 6, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestWallClockToUTCAmbiguousFallBack(t *testing.T) {
	// 01:30 happens twice on 2024-11-03 in New York. The conversion resolves
	// to the earliest (pre-transition, EDT) instant.
	ny := mustLocation(t, "America/New_York")

	got, err := WallClockToUTC("2024-11-03", "01:30", ny)
	if err != nil {
		t.Fatalf("WallClockToUTC failed: %v", err)
	}

	want := time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected earliest instant %v, got %v", want, got)
	}
}

func TestUTCOffsetMinutesChangesAcrossDST(t *testing.T) {
	ny := mustLocation(t, "America/New_York")

	winter := UTCOffsetMinutes(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), ny)
	if winter != -300 {
		t.Errorf("Expected -300 in January, got %d", winter)
	}

	summer := UTCOffsetMinutes(time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC), ny)
	if summer != -240 {
		t.Errorf("Expected -240 in July, got %d", summer)
	}
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	if _, err := Location("Mars/Olympus_Mons"); err == nil {
		t.Error("Expected error for unknown zone")
	}
}
