package experience

// XP constants for a single check-in award.
const (
	BaseCheckInXP       = 15
	OnTimeBonusXP       = 5
	StreakBonusPerDayXP = 2

	// DailyCompleteMultiplier is the effective multiplier on the triggering
	// check-in's base XP when every daily challenge due today is complete.
	DailyCompleteMultiplier = 2
)

// StartingTitle is never added to the unlockable-title list.
const StartingTitle = "Newcomer"

// Level is one row of the progression table.
type Level struct {
	Level      int    `json:"level"`
	Title      string `json:"title"`
	XPRequired int    `json:"xp_required"`
}

// table is ordered ascending by XPRequired; FromXP walks it.
var table = []Level{
	{1, "Newcomer", 0},
	{2, "Committed", 100},
	{3, "Consistent", 250},
	{4, "Dedicated", 500},
	{5, "Disciplined", 1000},
	{6, "Relentless", 2000},
	{7, "Unstoppable", 3500},
	{8, "Iron Willed", 5500},
	{9, "Habit Legend", 8000},
	{10, "Paragon", 12000},
}

// FromXP returns the highest level whose threshold is at or below xp.
// Monotonic: more XP never yields a lower level.
func FromXP(xp int) Level {
	current := table[0]
	for _, lvl := range table {
		if xp >= lvl.XPRequired {
			current = lvl
		} else {
			break
		}
	}
	return current
}

// NextLevelXP is the smallest threshold strictly above the given level's, or
// the table maximum when already at the top.
func NextLevelXP(level int) int {
	for _, lvl := range table {
		if lvl.Level > level {
			return lvl.XPRequired
		}
	}
	return table[len(table)-1].XPRequired
}

// MaxLevel is the top of the table.
func MaxLevel() int {
	return table[len(table)-1].Level
}
