package streak

import (
	"testing"

	"habitPactAPI/internal/period"
)

func TestIsConsecutive(t *testing.T) {
	tests := []struct {
		lastKey string
		newKey  string
		unit    period.Unit
		want    bool
	}{
		{"2024-05-01", "2024-05-02", period.UnitDaily, true},
		{"2024-05-01", "2024-05-03", period.UnitDaily, false},
		{"2024-05-01", "2024-05-01", period.UnitDaily, false},
		{"", "2024-05-02", period.UnitDaily, false},
		{"2024-04-29", "2024-05-06", period.UnitWeekly, true},
		{"2024-04-29", "2024-05-13", period.UnitWeekly, false},
		{"bad-key", "2024-05-02", period.UnitDaily, false},
	}

	for _, tt := range tests {
		if got := IsConsecutive(tt.lastKey, tt.newKey, tt.unit); got != tt.want {
			t.Errorf("IsConsecutive(%q, %q, %s) = %v, want %v", tt.lastKey, tt.newKey, tt.unit, got, tt.want)
		}
	}
}

func TestNext(t *testing.T) {
	current, longest := Next(5, 10, true)
	if current != 6 || longest != 10 {
		t.Errorf("Expected 6/10, got %d/%d", current, longest)
	}

	current, longest = Next(5, 5, true)
	if current != 6 || longest != 6 {
		t.Errorf("Expected new longest 6/6, got %d/%d", current, longest)
	}

	current, longest = Next(5, 10, false)
	if current != 1 || longest != 10 {
		t.Errorf("Expected reset to 1/10, got %d/%d", current, longest)
	}

	current, longest = Next(0, 0, false)
	if current != 1 || longest != 1 {
		t.Errorf("Expected first period 1/1, got %d/%d", current, longest)
	}
}

func TestShieldEarned(t *testing.T) {
	for _, streak := range []int{7, 14, 21, 70} {
		if !ShieldEarned(streak) {
			t.Errorf("Expected shield at streak %d", streak)
		}
	}
	for _, streak := range []int{0, 1, 6, 8, 13} {
		if ShieldEarned(streak) {
			t.Errorf("Did not expect shield at streak %d", streak)
		}
	}
}

func TestIsMilestone(t *testing.T) {
	for _, streak := range []int{3, 7, 14, 30, 50, 100, 365} {
		if !IsMilestone(streak) {
			t.Errorf("Expected milestone at streak %d", streak)
		}
	}
	for _, streak := range []int{0, 1, 4, 15, 200} {
		if IsMilestone(streak) {
			t.Errorf("Did not expect milestone at streak %d", streak)
		}
	}
}
