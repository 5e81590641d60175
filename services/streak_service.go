package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitPactAPI/internal/database"
	"habitPactAPI/internal/period"
	"habitPactAPI/internal/types/checkin"
	"habitPactAPI/internal/types/streak"
)

// StreakService tracks per-member consecutive-period streaks: continuity
// detection, shield issuance and milestone flags.
type StreakService struct {
	db database.Querier
}

func NewStreakService(db database.Querier) *StreakService {
	return &StreakService{db: db}
}

// UpdateStreak applies one completed period to the member's streak counters.
// Consecutive means the gap from the last check-in period is exactly one
// period (1 day for daily, 7 for weekly); anything else resets to 1.
func (s *StreakService) UpdateStreak(ctx context.Context, challengeID, userID uuid.UUID, periodKey string, unit period.Unit) (*checkin.StreakResult, error) {
	var lastKey string
	var current, longest, shields int

	err := s.db.QueryRow(ctx, `
		SELECT last_check_in_period_key, current_streak, longest_streak, streak_shields
		FROM challenge_members
		WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID,
	).Scan(&lastKey, &current, &longest, &shields)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkin.ErrNotMember
		}
		return nil, fmt.Errorf("failed to load member streak: %w", err)
	}

	consecutive := streak.IsConsecutive(lastKey, periodKey, unit)
	current, longest = streak.Next(current, longest, consecutive)

	earned := streak.ShieldEarned(current)
	if earned {
		shields++
	}

	_, err = s.db.Exec(ctx, `
		UPDATE challenge_members
		SET current_streak = $3,
			longest_streak = $4,
			streak_shields = $5,
			streak_shield_used = CASE WHEN $6 THEN false ELSE streak_shield_used END,
			last_check_in_period_key = $7,
			updated_at = NOW()
		WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID, current, longest, shields, earned, periodKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to persist streak: %w", err)
	}

	return &checkin.StreakResult{
		CurrentStreak: current,
		LongestStreak: longest,
		ShieldEarned:  earned,
		Milestone:     streak.IsMilestone(current),
	}, nil
}

// UseStreakShield consumes one shield, if any is available. Returns false
// when the member has no shields left; the caller then falls through to the
// normal streak-reset or elimination handling.
func (s *StreakService) UseStreakShield(ctx context.Context, challengeID, userID uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE challenge_members
		SET streak_shields = streak_shields - 1,
			streak_shield_used = true,
			updated_at = NOW()
		WHERE challenge_id = $1 AND user_id = $2 AND streak_shields > 0`,
		challengeID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to use streak shield: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResetStreak zeroes the member's current streak after an unshielded miss.
func (s *StreakService) ResetStreak(ctx context.Context, challengeID, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE challenge_members
		SET current_streak = 0, updated_at = NOW()
		WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to reset streak: %w", err)
	}
	return nil
}
