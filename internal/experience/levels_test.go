package experience

import "testing"

func TestFromXPBoundaries(t *testing.T) {
	tests := []struct {
		xp        int
		wantLevel int
		wantTitle string
	}{
		{0, 1, "Newcomer"},
		{99, 1, "Newcomer"},
		{100, 2, "Committed"},
		{249, 2, "Committed"},
		{250, 3, "Consistent"},
		{12000, 10, "Paragon"},
		{999999, 10, "Paragon"},
	}

	for _, tt := range tests {
		got := FromXP(tt.xp)
		if got.Level != tt.wantLevel || got.Title != tt.wantTitle {
			t.Errorf("FromXP(%d) = %d/%s, want %d/%s", tt.xp, got.Level, got.Title, tt.wantLevel, tt.wantTitle)
		}
	}
}

func TestFromXPMonotonic(t *testing.T) {
	prev := 0
	for xp := 0; xp <= 13000; xp += 50 {
		level := FromXP(xp).Level
		if level < prev {
			t.Fatalf("Level dropped from %d to %d at %d XP", prev, level, xp)
		}
		prev = level
	}
}

func TestNextLevelXP(t *testing.T) {
	if got := NextLevelXP(1); got != 100 {
		t.Errorf("Expected 100 after level 1, got %d", got)
	}
	if got := NextLevelXP(9); got != 12000 {
		t.Errorf("Expected 12000 after level 9, got %d", got)
	}
	// At the top the threshold stays at the table maximum.
	if got := NextLevelXP(MaxLevel()); got != 12000 {
		t.Errorf("Expected 12000 at max level, got %d", got)
	}
}
