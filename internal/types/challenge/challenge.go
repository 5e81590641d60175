package challenge

import (
	"time"

	"github.com/google/uuid"

	"habitPactAPI/internal/period"
)

type Type string

const (
	TypeStandard    Type = "standard"
	TypeProgress    Type = "progress"
	TypeElimination Type = "elimination"
	TypeDeadline    Type = "deadline"
)

type State string

const (
	StateActive State = "active"
	StateEnded  State = "ended"
)

type MemberState string

const (
	MemberActive     MemberState = "active"
	MemberEliminated MemberState = "eliminated"
)

// Challenge is a recurring commitment owned by an admin user. Due times are
// stored as a local wall-clock string in the admin's zone; legacy rows carry
// only a fixed UTC offset in minutes instead of an IANA zone name.
type Challenge struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	AdminID          uuid.UUID   `json:"admin_id"`
	Type             Type        `json:"type"`
	State            State       `json:"state"`
	Cadence          period.Unit `json:"cadence"`
	RequiredPerWeek  int         `json:"required_per_week"`
	WeekStartsOn     int         `json:"week_starts_on"`
	DueTimeLocal     string      `json:"due_time_local"`
	Timezone         string      `json:"timezone"`
	UTCOffsetMinutes int         `json:"utc_offset_minutes"`
	DeadlineAt       *time.Time  `json:"deadline_at,omitempty"`
	WinnerID         *uuid.UUID  `json:"winner_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Zone selects the period-resolution strategy for this challenge. Rows with
// an IANA zone use it; rows without one fall back to the legacy fixed offset.
func (c *Challenge) Zone() period.ZoneSpec {
	if c.Timezone != "" {
		return period.IanaZone(c.Timezone)
	}
	return period.FixedOffset(c.UTCOffsetMinutes)
}

// RequiredCount is how many completed check-ins one period demands.
func (c *Challenge) RequiredCount() int {
	if c.Cadence == period.UnitWeekly && c.RequiredPerWeek > 0 {
		return c.RequiredPerWeek
	}
	return 1
}

// Member is the per (challenge, user) participation record, keyed by the
// composite (challenge_id, user_id).
type Member struct {
	ChallengeID            uuid.UUID   `json:"challenge_id"`
	UserID                 uuid.UUID   `json:"user_id"`
	State                  MemberState `json:"state"`
	Strikes                int         `json:"strikes"`
	CurrentStreak          int         `json:"current_streak"`
	LongestStreak          int         `json:"longest_streak"`
	StreakShields          int         `json:"streak_shields"`
	StreakShieldUsed       bool        `json:"streak_shield_used"`
	LastCheckInPeriodKey   string      `json:"last_check_in_period_key"`
	LastEvaluatedPeriodKey string      `json:"last_evaluated_period_key"`
	JoinedAt               time.Time   `json:"joined_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

type CreateChallengeRequest struct {
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Type            Type        `json:"type"`
	Cadence         period.Unit `json:"cadence"`
	RequiredPerWeek int         `json:"required_per_week"`
	WeekStartsOn    int         `json:"week_starts_on"`
	DueTimeLocal    string      `json:"due_time_local"`
	Timezone        string      `json:"timezone"`
	DeadlineAt      *time.Time  `json:"deadline_at,omitempty"`
}

type EndChallengeRequest struct {
	WinnerID *uuid.UUID `json:"winner_id,omitempty"`
}

// WithMembership pairs a challenge with the requesting user's member record.
type WithMembership struct {
	Challenge *Challenge `json:"challenge"`
	Member    *Member    `json:"member"`
}
