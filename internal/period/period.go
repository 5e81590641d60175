package period

import (
	"fmt"
	"time"

	"habitPactAPI/internal/timezone"
)

// Unit is the cadence of a recurring commitment window.
type Unit string

const (
	UnitDaily  Unit = "daily"
	UnitWeekly Unit = "weekly"
)

// KeyLayout is the canonical period key format. Keys sort lexicographically
// in temporal order.
const KeyLayout = "2006-01-02"

// ZoneSpec is the reference frame for all period computations. A challenge
// either stores an IANA zone name or, for legacy rows, a fixed UTC offset in
// minutes. The two strategies are selected by a capability check on the
// challenge record and never mixed within one computation.
type ZoneSpec struct {
	name          string
	offsetMinutes int
	fixed         bool
}

func IanaZone(name string) ZoneSpec {
	return ZoneSpec{name: name}
}

func FixedOffset(minutes int) ZoneSpec {
	return ZoneSpec{offsetMinutes: minutes, fixed: true}
}

func (z ZoneSpec) String() string {
	if z.fixed {
		return fmt.Sprintf("UTC%+dm", z.offsetMinutes)
	}
	return z.name
}

// Location resolves the zone spec to a *time.Location. Fixed offsets get a
// synthetic zone with a constant offset, so the same wall-clock arithmetic
// applies to both variants.
func (z ZoneSpec) Location() (*time.Location, error) {
	if z.fixed {
		return time.FixedZone(z.String(), z.offsetMinutes*60), nil
	}
	return timezone.Location(z.name)
}

// DayKey is the zoned calendar date of the instant as YYYY-MM-DD.
func DayKey(zone ZoneSpec, instant time.Time) (string, error) {
	loc, err := zone.Location()
	if err != nil {
		return "", err
	}
	c := timezone.WallClockInZone(instant, loc)
	return fmt.Sprintf("%04d-%02d-%02d", c.Year, c.Month, c.Day), nil
}

// WeekKey is the date of the most recent occurrence of weekStartsOn
// (0=Sunday..6=Saturday) on or before the zoned date of the instant.
func WeekKey(zone ZoneSpec, weekStartsOn int, instant time.Time) (string, error) {
	loc, err := zone.Location()
	if err != nil {
		return "", err
	}
	c := timezone.WallClockInZone(instant, loc)
	day := time.Date(c.Year, time.Month(c.Month), c.Day, 0, 0, 0, 0, time.UTC)

	back := (c.Weekday - weekStartsOn + 7) % 7
	return day.AddDate(0, 0, -back).Format(KeyLayout), nil
}

// CurrentDayKey is the period key of the active daily commitment. The active
// window rolls over to tomorrow once today's due moment has passed, even
// before midnight.
func CurrentDayKey(zone ZoneSpec, dueTimeLocal string, now time.Time) (string, error) {
	today, err := DayKey(zone, now)
	if err != nil {
		return "", err
	}

	due, err := DueMoment(zone, today, dueTimeLocal, UnitDaily)
	if err != nil {
		return "", err
	}

	if !now.Before(due) {
		return shiftKey(today, 1)
	}
	return today, nil
}

// CurrentWeekKey is the period key of the week window containing now.
func CurrentWeekKey(zone ZoneSpec, weekStartsOn int, now time.Time) (string, error) {
	return WeekKey(zone, weekStartsOn, now)
}

// PreviousDayKey is one daily period before the current one; it identifies
// the window that was most recently missed or completed.
func PreviousDayKey(zone ZoneSpec, dueTimeLocal string, now time.Time) (string, error) {
	current, err := CurrentDayKey(zone, dueTimeLocal, now)
	if err != nil {
		return "", err
	}
	return shiftKey(current, -1)
}

// PreviousWeekKey is one weekly period before the current one.
func PreviousWeekKey(zone ZoneSpec, weekStartsOn int, now time.Time) (string, error) {
	current, err := CurrentWeekKey(zone, weekStartsOn, now)
	if err != nil {
		return "", err
	}
	return shiftKey(current, -7)
}

// DueMoment is the absolute instant after which the given period's check-in
// is late. For weekly periods the due wall clock is read on the last day of
// the week window (key + 6 days), not its first.
func DueMoment(zone ZoneSpec, periodKey, dueTimeLocal string, unit Unit) (time.Time, error) {
	dueDate := periodKey
	if unit == UnitWeekly {
		shifted, err := shiftKey(periodKey, 6)
		if err != nil {
			return time.Time{}, err
		}
		dueDate = shifted
	}

	loc, err := zone.Location()
	if err != nil {
		return time.Time{}, err
	}
	return timezone.WallClockToUTC(dueDate, dueTimeLocal, loc)
}

// DuePassed reports whether the due moment for the given period key is at or
// before now.
func DuePassed(zone ZoneSpec, periodKey, dueTimeLocal string, unit Unit, now time.Time) (bool, error) {
	due, err := DueMoment(zone, periodKey, dueTimeLocal, unit)
	if err != nil {
		return false, err
	}
	return !now.Before(due), nil
}

// DayDiff is the calendar-day distance from one period key to another.
// Positive when to is after from.
func DayDiff(fromKey, toKey string) (int, error) {
	from, err := time.Parse(KeyLayout, fromKey)
	if err != nil {
		return 0, fmt.Errorf("invalid period key %q: %w", fromKey, err)
	}
	to, err := time.Parse(KeyLayout, toKey)
	if err != nil {
		return 0, fmt.Errorf("invalid period key %q: %w", toKey, err)
	}
	return int(to.Sub(from).Hours() / 24), nil
}

func shiftKey(key string, days int) (string, error) {
	t, err := time.Parse(KeyLayout, key)
	if err != nil {
		return "", fmt.Errorf("invalid period key %q: %w", key, err)
	}
	return t.AddDate(0, 0, days).Format(KeyLayout), nil
}
