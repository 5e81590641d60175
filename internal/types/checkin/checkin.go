package checkin

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"habitPactAPI/internal/period"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
	StatusFailed    Status = "failed"
)

// Validation errors surfaced verbatim to the client. Everything else a
// submission can fail with is a store error and means the check-in did not
// happen.
var (
	ErrChallengeEnded   = errors.New("challenge has ended")
	ErrEliminated       = errors.New("member is eliminated from this challenge")
	ErrDeadlinePassed   = errors.New("challenge deadline has passed")
	ErrAlreadyCheckedIn = errors.New("already checked in for this period")
	ErrNotMember        = errors.New("user is not a member of this challenge")
)

// CheckIn is an immutable fact: one submission assigned to exactly one
// period. Never updated after creation.
type CheckIn struct {
	ID          uuid.UUID   `json:"id"`
	ChallengeID uuid.UUID   `json:"challenge_id"`
	UserID      uuid.UUID   `json:"user_id"`
	PeriodUnit  period.Unit `json:"period_unit"`
	PeriodKey   string      `json:"period_key"`
	Status      Status      `json:"status"`
	OnTime      bool        `json:"on_time"`
	Done        bool        `json:"done"`
	Amount      *float64    `json:"amount,omitempty"`
	Note        string      `json:"note,omitempty"`
	DurationSec *int        `json:"duration_sec,omitempty"`
	Attachments []string    `json:"attachments,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type SubmitRequest struct {
	ChallengeID uuid.UUID `json:"challenge_id"`
	Done        bool      `json:"done"`
	Amount      *float64  `json:"amount,omitempty"`
	Note        string    `json:"note,omitempty"`
	DurationSec *int      `json:"duration_sec,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
}

// StreakResult is what the streak tracker reports back for one submission.
// Zeroed when the tracker fails; the submission itself still succeeds.
type StreakResult struct {
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
	ShieldEarned  bool `json:"shield_earned"`
	Milestone     bool `json:"milestone"`
}

// XPResult summarizes the experience ledger's update for one award.
type XPResult struct {
	Awarded     int    `json:"awarded"`
	TotalXP     int    `json:"total_xp"`
	Level       int    `json:"level"`
	Title       string `json:"title"`
	LeveledUp   bool   `json:"leveled_up"`
	NextLevelXP int    `json:"next_level_xp"`
}

// SubmitResult is the progression summary returned for a legal submission.
type SubmitResult struct {
	CheckIn *CheckIn      `json:"check_in"`
	Streak  *StreakResult `json:"streak"`
	XP      *XPResult     `json:"xp"`
}
