package streak

import (
	"habitPactAPI/internal/period"
)

// ShieldInterval is how many consecutive periods earn one streak shield.
const ShieldInterval = 7

// milestones that trigger a celebration notification.
var milestones = map[int]bool{
	3:   true,
	7:   true,
	14:  true,
	30:  true,
	50:  true,
	100: true,
	365: true,
}

// IsConsecutive reports whether newKey directly follows lastKey for the
// given cadence: a gap of exactly 1 day for daily, exactly 7 for weekly.
// Any other gap breaks the streak.
func IsConsecutive(lastKey, newKey string, unit period.Unit) bool {
	if lastKey == "" {
		return false
	}

	diff, err := period.DayDiff(lastKey, newKey)
	if err != nil {
		return false
	}

	if unit == period.UnitWeekly {
		return diff == 7
	}
	return diff == 1
}

// Next applies one completed period to a streak counter pair and returns the
// updated values.
func Next(current, longest int, consecutive bool) (int, int) {
	if consecutive {
		current++
	} else {
		current = 1
	}
	if current > longest {
		longest = current
	}
	return current, longest
}

// ShieldEarned reports whether reaching the given streak mints a new shield.
func ShieldEarned(currentStreak int) bool {
	return currentStreak > 0 && currentStreak%ShieldInterval == 0
}

// IsMilestone reports whether the given streak is a celebrated milestone.
func IsMilestone(currentStreak int) bool {
	return milestones[currentStreak]
}
