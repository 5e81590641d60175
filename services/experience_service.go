package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitPactAPI/internal/database"
	"habitPactAPI/internal/experience"
	"habitPactAPI/internal/types/checkin"
)

// ExperienceService is the XP ledger: it accrues experience, derives level
// and title from the threshold table, and unlocks titles as they are earned.
// Level and title only ever move up.
type ExperienceService struct {
	db database.Querier
}

func NewExperienceService(db database.Querier) *ExperienceService {
	return &ExperienceService{db: db}
}

// AwardCheckInXP grants the XP for one completed check-in: base, an on-time
// bonus, and a per-period streak bonus. It also counts the check-in and
// raises the user's global longest-streak record if the new value is larger.
func (s *ExperienceService) AwardCheckInXP(ctx context.Context, userID uuid.UUID, onTime bool, currentStreak, longestStreak int) (*checkin.XPResult, error) {
	amount := experience.BaseCheckInXP
	if onTime {
		amount += experience.OnTimeBonusXP
	}
	amount += experience.StreakBonusPerDayXP * currentStreak

	return s.award(ctx, userID, amount, true, longestStreak)
}

// AwardXPOnly grants XP without touching the check-in counter. Used for the
// daily completion bonus and achievement rewards, so those never double
// count as check-ins.
func (s *ExperienceService) AwardXPOnly(ctx context.Context, userID uuid.UUID, amount int) (*checkin.XPResult, error) {
	return s.award(ctx, userID, amount, false, 0)
}

func (s *ExperienceService) award(ctx context.Context, userID uuid.UUID, amount int, countCheckIn bool, longestStreak int) (*checkin.XPResult, error) {
	checkInInc := 0
	if countCheckIn {
		checkInInc = 1
	}

	// longest_streak is derived with GREATEST in the same write, so the
	// "longest >= current" invariant holds without a cross-record transaction.
	query := `
	UPDATE users
	SET xp = xp + $2,
		total_check_ins = total_check_ins + $3,
		longest_streak = GREATEST(longest_streak, $4),
		updated_at = NOW()
	WHERE id = $1
	RETURNING xp, level, level_title
	`

	var newXP, oldLevel int
	var oldTitle string
	err := s.db.QueryRow(ctx, query, userID, amount, checkInInc, longestStreak).Scan(&newXP, &oldLevel, &oldTitle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to award xp: %w", err)
	}

	result := &checkin.XPResult{
		Awarded:     amount,
		TotalXP:     newXP,
		Level:       oldLevel,
		Title:       oldTitle,
		NextLevelXP: experience.NextLevelXP(oldLevel),
	}

	lvl := experience.FromXP(newXP)
	if lvl.Level > oldLevel {
		// The level guard keeps the update monotonic even if a concurrent
		// award already moved the row further.
		_, err = s.db.Exec(ctx,
			`UPDATE users SET level = $2, level_title = $3, updated_at = NOW() WHERE id = $1 AND level < $2`,
			userID, lvl.Level, lvl.Title,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update level: %w", err)
		}

		if lvl.Title != experience.StartingTitle {
			if err := s.UnlockTitle(ctx, userID, lvl.Title); err != nil {
				log.Printf("AwardXP: failed to unlock title %q for %s: %v", lvl.Title, userID, err)
			}
		}

		result.Level = lvl.Level
		result.Title = lvl.Title
		result.LeveledUp = true
		result.NextLevelXP = experience.NextLevelXP(lvl.Level)
	}

	return result, nil
}

// UnlockTitle makes a title selectable for the user. Idempotent.
func (s *ExperienceService) UnlockTitle(ctx context.Context, userID uuid.UUID, title string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO user_titles (user_id, title, unlocked_at) VALUES ($1, $2, NOW()) ON CONFLICT (user_id, title) DO NOTHING`,
		userID, title,
	)
	if err != nil {
		return fmt.Errorf("failed to unlock title: %w", err)
	}
	return nil
}

func (s *ExperienceService) GetUnlockedTitles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT title FROM user_titles WHERE user_id = $1 ORDER BY unlocked_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		titles = append(titles, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if titles == nil {
		titles = []string{}
	}

	return titles, nil
}
