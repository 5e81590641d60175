package achievement

import (
	"time"

	"github.com/google/uuid"
)

type CriteriaType string

const (
	CriteriaTotalCheckIns     CriteriaType = "total_checkins"
	CriteriaStreak            CriteriaType = "streak"
	CriteriaDeadlineComplete  CriteriaType = "deadline_complete"
	CriteriaEliminationWin    CriteriaType = "elimination_win"
	CriteriaGroupsJoined      CriteriaType = "groups_joined"
	CriteriaGroupsCreated     CriteriaType = "groups_created"
	CriteriaOnTimeCheckIns    CriteriaType = "on_time_checkins"
	CriteriaLateNightCheckIns CriteriaType = "late_night_checkins"
)

// Definition is one badge: a typed threshold condition plus its rewards.
// IDs are stable slugs; the unlock record in the store is keyed by them,
// which is what makes the engine idempotent per badge.
type Definition struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Criteria    CriteriaType `json:"criteria_type"`
	Threshold   int          `json:"criteria_value"`
	Title       string       `json:"title,omitempty"`
	RewardXP    int          `json:"reward_xp"`
}

// Stats are the aggregates the engine evaluates conditions against.
type Stats struct {
	TotalCheckIns     int
	LongestStreak     int
	DeadlineCompleted int
	EliminationWins   int
	GroupsJoined      int
	GroupsCreated     int
	OnTimeCheckIns    int
	LateNightCheckIns int
}

// Satisfied evaluates the definition's condition against the stats.
func (d Definition) Satisfied(s Stats) bool {
	switch d.Criteria {
	case CriteriaTotalCheckIns:
		return s.TotalCheckIns >= d.Threshold
	case CriteriaStreak:
		return s.LongestStreak >= d.Threshold
	case CriteriaDeadlineComplete:
		return s.DeadlineCompleted >= d.Threshold
	case CriteriaEliminationWin:
		return s.EliminationWins >= d.Threshold
	case CriteriaGroupsJoined:
		return s.GroupsJoined >= d.Threshold
	case CriteriaGroupsCreated:
		return s.GroupsCreated >= d.Threshold
	case CriteriaOnTimeCheckIns:
		return s.OnTimeCheckIns >= d.Threshold
	case CriteriaLateNightCheckIns:
		return s.LateNightCheckIns >= d.Threshold
	}
	return false
}

// Catalog is the full achievement set, evaluated in order.
var Catalog = []Definition{
	{ID: "first_checkin", Name: "First Step", Description: "Submit your first check-in", Icon: "footprints", Criteria: CriteriaTotalCheckIns, Threshold: 1, RewardXP: 10},
	{ID: "checkins_50", Name: "Regular", Description: "50 check-ins total", Icon: "calendar-check", Criteria: CriteriaTotalCheckIns, Threshold: 50, Title: "Regular", RewardXP: 50},
	{ID: "checkins_250", Name: "Veteran", Description: "250 check-ins total", Icon: "medal", Criteria: CriteriaTotalCheckIns, Threshold: 250, Title: "Veteran", RewardXP: 150},
	{ID: "checkins_1000", Name: "Machine", Description: "1000 check-ins total", Icon: "robot", Criteria: CriteriaTotalCheckIns, Threshold: 1000, Title: "Machine", RewardXP: 500},
	{ID: "streak_7", Name: "One Week Strong", Description: "A 7 period streak", Icon: "flame", Criteria: CriteriaStreak, Threshold: 7, RewardXP: 25},
	{ID: "streak_30", Name: "Monthly Devotion", Description: "A 30 period streak", Icon: "fire", Criteria: CriteriaStreak, Threshold: 30, Title: "Devoted", RewardXP: 100},
	{ID: "streak_100", Name: "Centurion", Description: "A 100 period streak", Icon: "shield", Criteria: CriteriaStreak, Threshold: 100, Title: "Centurion", RewardXP: 300},
	{ID: "streak_365", Name: "Year of Iron", Description: "A full year streak", Icon: "crown", Criteria: CriteriaStreak, Threshold: 365, Title: "Iron Year", RewardXP: 1000},
	{ID: "deadline_1", Name: "Beat the Clock", Description: "Complete a deadline challenge", Icon: "hourglass", Criteria: CriteriaDeadlineComplete, Threshold: 1, RewardXP: 40},
	{ID: "elimination_1", Name: "Last One Standing", Description: "Win an elimination challenge", Icon: "trophy", Criteria: CriteriaEliminationWin, Threshold: 1, Title: "Survivor", RewardXP: 75},
	{ID: "elimination_5", Name: "Apex", Description: "Win five elimination challenges", Icon: "mountain", Criteria: CriteriaEliminationWin, Threshold: 5, Title: "Apex", RewardXP: 250},
	{ID: "joined_5", Name: "Joiner", Description: "Participate in five challenges", Icon: "users", Criteria: CriteriaGroupsJoined, Threshold: 5, RewardXP: 30},
	{ID: "created_3", Name: "Ringleader", Description: "Create three challenges", Icon: "megaphone", Criteria: CriteriaGroupsCreated, Threshold: 3, Title: "Ringleader", RewardXP: 50},
	{ID: "on_time_100", Name: "Punctual", Description: "100 on-time check-ins", Icon: "clock", Criteria: CriteriaOnTimeCheckIns, Threshold: 100, Title: "Punctual", RewardXP: 100},
	{ID: "late_night_25", Name: "Night Owl", Description: "25 late-night check-ins", Icon: "moon", Criteria: CriteriaLateNightCheckIns, Threshold: 25, Title: "Night Owl", RewardXP: 50},
}

// Unlock is a persisted badge record.
type Unlock struct {
	UserID        uuid.UUID `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at"`
}

// WithStatus decorates a definition with its unlock state for a user.
type WithStatus struct {
	Definition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}
