package user

import (
	"time"

	"github.com/google/uuid"
)

// User carries the aggregate progression state every subsystem mutates
// incrementally. Counters only ever grow; level and title are monotonic.
type User struct {
	ID                uuid.UUID `json:"id"`
	ClerkID           string    `json:"clerkId"`
	Email             string    `json:"email"`
	Username          string    `json:"username"`
	ImageURL          string    `json:"imageUrl,omitempty"`
	XP                int       `json:"xp"`
	Level             int       `json:"level"`
	LevelTitle        string    `json:"levelTitle"`
	TotalCheckIns     int       `json:"totalCheckIns"`
	LongestStreak     int       `json:"longestStreak"`
	OnTimeCheckIns    int       `json:"onTimeCheckIns"`
	LateNightCheckIns int       `json:"lateNightCheckIns"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
