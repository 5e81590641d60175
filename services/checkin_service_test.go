package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"habitPactAPI/internal/period"
	"habitPactAPI/internal/types/challenge"
	"habitPactAPI/internal/types/checkin"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load()
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	db, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	return db
}

// seedMembership creates a user, a daily UTC challenge due at 23:00 and the
// membership row. Deleting the user cascades everything away.
func seedMembership(t *testing.T, db *pgxpool.Pool, challengeType challenge.Type) (uuid.UUID, string, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	userID := uuid.New()
	clerkID := "test_" + userID.String()
	_, err := db.Exec(ctx,
		`INSERT INTO users (id, clerk_id, username) VALUES ($1, $2, $3)`,
		userID, clerkID, "tester",
	)
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
	})

	challengeID := uuid.New()
	_, err = db.Exec(ctx, `
		INSERT INTO challenges (id, name, admin_id, type, state, cadence, due_time_local, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		challengeID, fmt.Sprintf("test challenge %s", challengeID), userID,
		challengeType, challenge.StateActive, period.UnitDaily, "23:00", "UTC",
	)
	if err != nil {
		t.Fatalf("Failed to seed challenge: %v", err)
	}

	_, err = db.Exec(ctx,
		`INSERT INTO challenge_members (challenge_id, user_id) VALUES ($1, $2)`,
		challengeID, userID,
	)
	if err != nil {
		t.Fatalf("Failed to seed membership: %v", err)
	}

	return userID, clerkID, challengeID
}

// seedWeeklyMembership is the weekly-cadence counterpart: Monday weeks, the
// given completion quota, due at 23:00 UTC on the last day.
func seedWeeklyMembership(t *testing.T, db *pgxpool.Pool, requiredPerWeek int) (uuid.UUID, string, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	userID := uuid.New()
	clerkID := "test_" + userID.String()
	_, err := db.Exec(ctx,
		`INSERT INTO users (id, clerk_id, username) VALUES ($1, $2, $3)`,
		userID, clerkID, "tester",
	)
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
	})

	challengeID := uuid.New()
	_, err = db.Exec(ctx, `
		INSERT INTO challenges (id, name, admin_id, type, state, cadence, required_per_week, week_starts_on, due_time_local, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		challengeID, fmt.Sprintf("test challenge %s", challengeID), userID,
		challenge.TypeStandard, challenge.StateActive, period.UnitWeekly, requiredPerWeek, 1, "23:00", "UTC",
	)
	if err != nil {
		t.Fatalf("Failed to seed challenge: %v", err)
	}

	_, err = db.Exec(ctx,
		`INSERT INTO challenge_members (challenge_id, user_id) VALUES ($1, $2)`,
		challengeID, userID,
	)
	if err != nil {
		t.Fatalf("Failed to seed membership: %v", err)
	}

	return userID, clerkID, challengeID
}

func newCheckInService(t *testing.T, db *pgxpool.Pool) *CheckInService {
	t.Helper()

	notifService := NewNotificationService(db)
	ledger := NewExperienceService(db)
	streaks := NewStreakService(db)
	achievements := NewAchievementService(db, ledger, notifService)
	svc := NewCheckInService(db, streaks, ledger, achievements, notifService)

	t.Cleanup(func() {
		svc.Stop()
		notifService.Stop()
	})
	return svc
}

func TestSubmitCheckInFlow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, clerkID, challengeID := seedMembership(t, db, challenge.TypeStandard)

	svc := newCheckInService(t, db)
	svc.SetClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})

	ctx := context.Background()
	result, err := svc.SubmitCheckIn(ctx, clerkID, &checkin.SubmitRequest{
		ChallengeID: challengeID,
		Done:        true,
	})
	if err != nil {
		t.Fatalf("Failed to submit check-in: %v", err)
	}

	if result.CheckIn.PeriodKey != "2024-05-01" {
		t.Errorf("Expected period 2024-05-01, got %s", result.CheckIn.PeriodKey)
	}
	if !result.CheckIn.OnTime {
		t.Error("Expected an on-time check-in 11 hours before the due moment")
	}
	if result.Streak.CurrentStreak != 1 {
		t.Errorf("Expected streak 1, got %d", result.Streak.CurrentStreak)
	}
	if result.XP.Awarded <= 0 {
		t.Errorf("Expected positive XP award, got %d", result.XP.Awarded)
	}
}

func TestSubmitCheckInRejectsDuplicate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, clerkID, challengeID := seedMembership(t, db, challenge.TypeStandard)

	svc := newCheckInService(t, db)
	svc.SetClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})

	ctx := context.Background()
	req := &checkin.SubmitRequest{ChallengeID: challengeID, Done: true}

	if _, err := svc.SubmitCheckIn(ctx, clerkID, req); err != nil {
		t.Fatalf("First submission failed: %v", err)
	}

	_, err := svc.SubmitCheckIn(ctx, clerkID, req)
	if !errors.Is(err, checkin.ErrAlreadyCheckedIn) {
		t.Errorf("Expected ErrAlreadyCheckedIn, got %v", err)
	}
}

func TestSubmitCheckInRejectsEndedChallenge(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, clerkID, challengeID := seedMembership(t, db, challenge.TypeStandard)

	ctx := context.Background()
	if _, err := db.Exec(ctx,
		`UPDATE challenges SET state = $2 WHERE id = $1`,
		challengeID, challenge.StateEnded,
	); err != nil {
		t.Fatalf("Failed to end challenge: %v", err)
	}

	svc := newCheckInService(t, db)
	_, err := svc.SubmitCheckIn(ctx, clerkID, &checkin.SubmitRequest{ChallengeID: challengeID, Done: true})
	if !errors.Is(err, checkin.ErrChallengeEnded) {
		t.Errorf("Expected ErrChallengeEnded, got %v", err)
	}
}

func TestSubmitCheckInRejectsEliminatedMember(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, clerkID, challengeID := seedMembership(t, db, challenge.TypeElimination)

	ctx := context.Background()
	if _, err := db.Exec(ctx,
		`UPDATE challenge_members SET state = $3 WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID, challenge.MemberEliminated,
	); err != nil {
		t.Fatalf("Failed to eliminate member: %v", err)
	}

	svc := newCheckInService(t, db)
	_, err := svc.SubmitCheckIn(ctx, clerkID, &checkin.SubmitRequest{ChallengeID: challengeID, Done: true})
	if !errors.Is(err, checkin.ErrEliminated) {
		t.Errorf("Expected ErrEliminated, got %v", err)
	}
}

func TestWeeklyCheckInsStopAtQuota(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, clerkID, challengeID := seedWeeklyMembership(t, db, 2)

	svc := newCheckInService(t, db)
	// 2024-05-01 is a Wednesday, well inside the Monday week of 2024-04-29.
	svc.SetClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})

	ctx := context.Background()
	req := &checkin.SubmitRequest{ChallengeID: challengeID, Done: true}

	for i := 1; i <= 2; i++ {
		result, err := svc.SubmitCheckIn(ctx, clerkID, req)
		if err != nil {
			t.Fatalf("Submission %d failed: %v", i, err)
		}
		if result.CheckIn.PeriodKey != "2024-04-29" {
			t.Errorf("Expected week key 2024-04-29, got %s", result.CheckIn.PeriodKey)
		}
	}

	_, err := svc.SubmitCheckIn(ctx, clerkID, req)
	if !errors.Is(err, checkin.ErrAlreadyCheckedIn) {
		t.Errorf("Expected ErrAlreadyCheckedIn past the weekly quota, got %v", err)
	}

	var completed int
	err = db.QueryRow(ctx, `
		SELECT COUNT(*) FROM check_ins
		WHERE challenge_id = $1 AND period_key = $2 AND status = $3`,
		challengeID, "2024-04-29", checkin.StatusCompleted,
	).Scan(&completed)
	if err != nil {
		t.Fatalf("Failed to count check-ins: %v", err)
	}
	if completed != 2 {
		t.Errorf("Expected exactly 2 completed check-ins, got %d", completed)
	}
}

func TestDailyCompleteBonusSkipsWeeklySubmissions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, clerkID, challengeID := seedWeeklyMembership(t, db, 2)

	svc := newCheckInService(t, db)
	svc.SetClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})

	ctx := context.Background()
	if _, err := svc.SubmitCheckIn(ctx, clerkID, &checkin.SubmitRequest{ChallengeID: challengeID, Done: true}); err != nil {
		t.Fatalf("Failed to submit check-in: %v", err)
	}

	// Stop drains the background queue, so XP is final afterwards.
	svc.Stop()

	// Weekly check-in: base 15 + streak 2, no on-time bonus, no daily-complete
	// bonus, plus the first-check-in achievement's 10.
	var xp int
	if err := db.QueryRow(ctx, `SELECT xp FROM users WHERE id = $1`, userID).Scan(&xp); err != nil {
		t.Fatalf("Failed to read xp: %v", err)
	}
	if xp != 27 {
		t.Errorf("Expected 27 XP without a daily-complete bonus, got %d", xp)
	}
}

func TestDailyCompleteBonusAwardedWhenAllDailiesDone(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	userID, clerkID, challengeID := seedMembership(t, db, challenge.TypeStandard)

	svc := newCheckInService(t, db)
	svc.SetClock(func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})

	ctx := context.Background()
	if _, err := svc.SubmitCheckIn(ctx, clerkID, &checkin.SubmitRequest{ChallengeID: challengeID, Done: true}); err != nil {
		t.Fatalf("Failed to submit check-in: %v", err)
	}

	svc.Stop()

	// The only daily challenge is complete: base 15 + on-time 5 + streak 2,
	// plus the 15 bonus and the first-check-in achievement's 10.
	var xp int
	if err := db.QueryRow(ctx, `SELECT xp FROM users WHERE id = $1`, userID).Scan(&xp); err != nil {
		t.Fatalf("Failed to read xp: %v", err)
	}
	if xp != 47 {
		t.Errorf("Expected 47 XP including the daily-complete bonus, got %d", xp)
	}
}

func TestConsecutiveCheckInsGrowStreak(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, clerkID, challengeID := seedMembership(t, db, challenge.TypeStandard)

	svc := newCheckInService(t, db)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		now := time.Date(2024, 5, day, 12, 0, 0, 0, time.UTC)
		svc.SetClock(func() time.Time { return now })

		result, err := svc.SubmitCheckIn(ctx, clerkID, &checkin.SubmitRequest{ChallengeID: challengeID, Done: true})
		if err != nil {
			t.Fatalf("Submission on day %d failed: %v", day, err)
		}
		if result.Streak.CurrentStreak != day {
			t.Errorf("Expected streak %d on day %d, got %d", day, day, result.Streak.CurrentStreak)
		}
	}
}
