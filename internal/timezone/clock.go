package timezone

import (
	"fmt"
	"sync"
	"time"
)

// Components is an absolute instant rendered as the wall-clock calendar of a
// specific zone. Weekday follows time.Weekday numbering (0 = Sunday).
type Components struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Weekday int
}

var (
	locCache = make(map[string]*time.Location)
	locMu    sync.Mutex
)

// Location resolves an IANA zone name, caching the result. The tz database
// lookup is the conversion primitive everywhere in this package; we never
// keep our own offset tables.
func Location(zone string) (*time.Location, error) {
	locMu.Lock()
	defer locMu.Unlock()

	if loc, ok := locCache[zone]; ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", zone, err)
	}

	locCache[zone] = loc
	return loc, nil
}

// WallClockInZone renders an instant as the given zone's local calendar.
func WallClockInZone(instant time.Time, loc *time.Location) Components {
	local := instant.In(loc)
	return Components{
		Year:    local.Year(),
		Month:   int(local.Month()),
		Day:     local.Day(),
		Hour:    local.Hour(),
		Minute:  local.Minute(),
		Weekday: int(local.Weekday()),
	}
}

// UTCOffsetMinutes is the zone's offset from UTC at the given instant,
// derived by rendering the same instant in both frames and subtracting the
// minute counts. The offset is a function of the instant, not the date: it
// changes across DST transitions.
func UTCOffsetMinutes(instant time.Time, loc *time.Location) int {
	zoned := naiveMinutes(WallClockInZone(instant, loc))
	utc := naiveMinutes(WallClockInZone(instant, time.UTC))
	return int(zoned - utc)
}

// naiveMinutes treats wall-clock components as if they were UTC and counts
// minutes since the epoch. Only ever used for same-instant subtraction.
func naiveMinutes(c Components) int64 {
	t := time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, 0, 0, time.UTC)
	return t.Unix() / 60
}

// WallClockToUTC converts a local date ("2006-01-02") and time ("15:04") in
// the given zone to the absolute instant. Two-pass guess-and-verify:
//
//  1. take the zone's UTC offset at the start of the target day as a guess,
//  2. subtract it from the naive UTC reading of the requested wall clock,
//  3. re-render the candidate in the zone and check hour/minute/day,
//  4. on mismatch (a DST transition happened between start of day and the
//     target time) recompute the offset at the candidate and subtract again.
//
// Times inside the spring-forward gap do not exist; the correction pass
// applies the post-transition offset to the naive reading, yielding an
// instant just before the transition (02:30 in the 2024-03-10 New York gap
// becomes 06:30 UTC, which renders as 01:30 EST). Ambiguous fall-back times
// resolve to the earliest (pre-transition) instant, because the first-pass
// offset wins when it verifies.
func WallClockToUTC(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	naive, err := time.Parse("2006-01-02 15:04", dateStr+" "+timeStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid wall clock %q %q: %w", dateStr, timeStr, err)
	}

	startOfDay := time.Date(naive.Year(), naive.Month(), naive.Day(), 0, 0, 0, 0, time.UTC)
	offset := UTCOffsetMinutes(startOfDay, loc)
	candidate := naive.Add(-time.Duration(offset) * time.Minute)

	got := WallClockInZone(candidate, loc)
	if got.Hour == naive.Hour() && got.Minute == naive.Minute() && got.Day == naive.Day() {
		return candidate, nil
	}

	// The offset changed on this day. One correction pass with the offset
	// taken at the candidate instant itself.
	offset = UTCOffsetMinutes(candidate, loc)
	return naive.Add(-time.Duration(offset) * time.Minute), nil
}
