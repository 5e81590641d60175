package achievement

import "testing"

func TestCatalogIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range Catalog {
		if seen[def.ID] {
			t.Errorf("Duplicate achievement id %s", def.ID)
		}
		seen[def.ID] = true

		if def.Threshold <= 0 {
			t.Errorf("Achievement %s has non-positive threshold", def.ID)
		}
		if def.RewardXP <= 0 {
			t.Errorf("Achievement %s has non-positive reward", def.ID)
		}
	}
}

func TestSatisfied(t *testing.T) {
	stats := Stats{
		TotalCheckIns:     50,
		LongestStreak:     7,
		EliminationWins:   1,
		GroupsJoined:      2,
		LateNightCheckIns: 30,
	}

	tests := []struct {
		id   string
		want bool
	}{
		{"first_checkin", true},
		{"checkins_50", true},
		{"checkins_250", false},
		{"streak_7", true},
		{"streak_30", false},
		{"elimination_1", true},
		{"elimination_5", false},
		{"joined_5", false},
		{"created_3", false},
		{"deadline_1", false},
		{"on_time_100", false},
		{"late_night_25", true},
	}

	byID := make(map[string]Definition)
	for _, def := range Catalog {
		byID[def.ID] = def
	}

	for _, tt := range tests {
		def, ok := byID[tt.id]
		if !ok {
			t.Fatalf("Achievement %s missing from catalog", tt.id)
		}
		if got := def.Satisfied(stats); got != tt.want {
			t.Errorf("Satisfied(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestUnknownCriteriaNeverSatisfied(t *testing.T) {
	def := Definition{ID: "bogus", Criteria: CriteriaType("unknown"), Threshold: 1}
	if def.Satisfied(Stats{TotalCheckIns: 100}) {
		t.Error("Unknown criteria must never be satisfied")
	}
}
