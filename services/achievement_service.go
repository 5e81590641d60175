package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitPactAPI/internal/achievement"
	"habitPactAPI/internal/database"
	"habitPactAPI/internal/notification"
	"habitPactAPI/internal/types/challenge"
	"habitPactAPI/middleware"
)

// AchievementService evaluates the badge catalog against a user's aggregate
// stats. Idempotent per badge: the store keys unlocks by (user, badge id)
// and an already-present badge is never re-evaluated.
type AchievementService struct {
	db           database.Querier
	ledger       *ExperienceService
	notifService *NotificationService
}

func NewAchievementService(db database.Querier, ledger *ExperienceService, notifService *NotificationService) *AchievementService {
	return &AchievementService{
		db:           db,
		ledger:       ledger,
		notifService: notifService,
	}
}

// CheckAndAwardAchievements unlocks every newly satisfied achievement and
// awards the summed XP reward through the XP-only path. Returns the newly
// unlocked definitions.
func (s *AchievementService) CheckAndAwardAchievements(ctx context.Context, userID uuid.UUID) ([]achievement.Definition, error) {
	unlocked, err := s.unlockedSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats, err := s.gatherStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var newly []achievement.Definition
	totalXP := 0

	for _, def := range achievement.Catalog {
		if unlocked[def.ID] || !def.Satisfied(stats) {
			continue
		}

		tag, err := s.db.Exec(ctx, `
			INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id, achievement_id) DO NOTHING`,
			userID, def.ID,
		)
		if err != nil {
			log.Printf("Achievements: failed to record %s for %s: %v", def.ID, userID, err)
			continue
		}
		if tag.RowsAffected() == 0 {
			// Another writer unlocked it first.
			continue
		}

		if def.Title != "" {
			if err := s.ledger.UnlockTitle(ctx, userID, def.Title); err != nil {
				log.Printf("Achievements: failed to unlock title %q for %s: %v", def.Title, userID, err)
			}
		}

		totalXP += def.RewardXP
		newly = append(newly, def)
		middleware.RecordAchievementUnlock(def.ID)

		_, err = s.notifService.Notify(ctx, &notification.CreateNotificationRequest{
			UserID: userID,
			Type:   notification.NotificationAchievement,
			Data:   map[string]any{"name": def.Name, "id": def.ID},
		})
		if err != nil {
			log.Printf("Achievements: failed to notify %s about %s: %v", userID, def.ID, err)
		}
	}

	if totalXP > 0 {
		if _, err := s.ledger.AwardXPOnly(ctx, userID, totalXP); err != nil {
			return newly, fmt.Errorf("failed to award achievement xp: %w", err)
		}
	}

	return newly, nil
}

func (s *AchievementService) unlockedSet(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	rows, err := s.db.Query(ctx,
		`SELECT achievement_id FROM user_achievements WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlocked achievements: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan achievement id: %w", err)
		}
		unlocked[id] = true
	}
	return unlocked, rows.Err()
}

// gatherStats runs the aggregate queries concurrently; the first error wins.
func (s *AchievementService) gatherStats(ctx context.Context, userID uuid.UUID) (achievement.Stats, error) {
	var (
		stats    achievement.Stats
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(4)

	go func() {
		defer wg.Done()
		err := s.db.QueryRow(ctx, `
			SELECT total_check_ins, longest_streak, on_time_check_ins, late_night_check_ins
			FROM users WHERE id = $1`,
			userID,
		).Scan(&stats.TotalCheckIns, &stats.LongestStreak, &stats.OnTimeCheckIns, &stats.LateNightCheckIns)
		if err != nil {
			fail(fmt.Errorf("failed to load user counters: %w", err))
		}
	}()

	go func() {
		defer wg.Done()
		err := s.db.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM challenges c
			INNER JOIN challenge_members m ON m.challenge_id = c.id
			WHERE m.user_id = $1 AND m.state = $2 AND c.type = $3 AND c.state = $4`,
			userID, challenge.MemberActive, challenge.TypeDeadline, challenge.StateEnded,
		).Scan(&stats.DeadlineCompleted)
		if err != nil {
			fail(fmt.Errorf("failed to count deadline completions: %w", err))
		}
	}()

	go func() {
		defer wg.Done()
		err := s.db.QueryRow(ctx, `
			SELECT COUNT(*) FROM challenges
			WHERE type = $2 AND state = $3 AND winner_id = $1`,
			userID, challenge.TypeElimination, challenge.StateEnded,
		).Scan(&stats.EliminationWins)
		if err != nil {
			fail(fmt.Errorf("failed to count elimination wins: %w", err))
		}
	}()

	go func() {
		defer wg.Done()
		err := s.db.QueryRow(ctx, `
			SELECT
				(SELECT COUNT(*) FROM challenge_members WHERE user_id = $1),
				(SELECT COUNT(*) FROM challenges WHERE admin_id = $1)`,
			userID,
		).Scan(&stats.GroupsJoined, &stats.GroupsCreated)
		if err != nil {
			fail(fmt.Errorf("failed to count groups: %w", err))
		}
	}()

	wg.Wait()
	return stats, firstErr
}

// GetAchievements returns the full catalog decorated with the user's unlock
// state.
func (s *AchievementService) GetAchievements(ctx context.Context, clerkID string) ([]achievement.WithStatus, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT achievement_id, unlocked_at FROM user_achievements WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlocks: %w", err)
	}
	defer rows.Close()

	unlockedAt := make(map[string]*time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		t := at
		unlockedAt[id] = &t
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result := make([]achievement.WithStatus, 0, len(achievement.Catalog))
	for _, def := range achievement.Catalog {
		at, ok := unlockedAt[def.ID]
		result = append(result, achievement.WithStatus{
			Definition: def,
			Unlocked:   ok,
			UnlockedAt: at,
		})
	}
	return result, nil
}
