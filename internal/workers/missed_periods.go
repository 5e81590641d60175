package workers

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"habitPactAPI/internal/database"
	"habitPactAPI/internal/notification"
	"habitPactAPI/internal/period"
	"habitPactAPI/internal/types/challenge"
	"habitPactAPI/internal/types/checkin"
	"habitPactAPI/services"
)

// eliminationStrikeLimit: one unshielded miss removes a member from an
// elimination challenge. Strikes keep counting for every challenge type.
const eliminationStrikeLimit = 1

// MissedPeriodWorker periodically evaluates the previous period of every
// active membership: a period whose due moment passed without enough
// completed check-ins burns a streak shield if one is available, otherwise
// it breaks the streak and, in elimination challenges, eliminates the
// member. Each period is evaluated once, tracked by the member's
// last_evaluated_period_key.
type MissedPeriodWorker struct {
	db           database.Querier
	streaks      *services.StreakService
	notifService *services.NotificationService
	interval     time.Duration
	now          func() time.Time
	stopChan     chan struct{}
}

func NewMissedPeriodWorker(db database.Querier, streaks *services.StreakService, notifService *services.NotificationService) *MissedPeriodWorker {
	return &MissedPeriodWorker{
		db:           db,
		streaks:      streaks,
		notifService: notifService,
		interval:     15 * time.Minute,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
}

func (w *MissedPeriodWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				w.Sweep(ctx)
				cancel()
			case <-w.stopChan:
				return
			}
		}
	}()
}

func (w *MissedPeriodWorker) Stop() {
	close(w.stopChan)
}

type membership struct {
	ch     challenge.Challenge
	userID uuid.UUID
	member challenge.Member
}

// Sweep evaluates one pass over all active memberships. Failures on one
// membership never stop the pass.
func (w *MissedPeriodWorker) Sweep(ctx context.Context) {
	rows, err := w.db.Query(ctx, `
		SELECT c.id, c.name, c.type, c.cadence, c.required_per_week, c.week_starts_on,
			c.due_time_local, COALESCE(c.timezone, ''), COALESCE(c.utc_offset_minutes, 0),
			m.user_id, m.strikes, m.last_check_in_period_key, m.last_evaluated_period_key, m.joined_at
		FROM challenges c
		INNER JOIN challenge_members m ON m.challenge_id = c.id
		WHERE c.state = $1 AND m.state = $2`,
		challenge.StateActive, challenge.MemberActive,
	)
	if err != nil {
		log.Printf("MissedPeriodWorker: failed to list memberships: %v", err)
		return
	}
	defer rows.Close()

	var memberships []membership
	for rows.Next() {
		var ms membership
		err := rows.Scan(
			&ms.ch.ID, &ms.ch.Name, &ms.ch.Type, &ms.ch.Cadence, &ms.ch.RequiredPerWeek,
			&ms.ch.WeekStartsOn, &ms.ch.DueTimeLocal, &ms.ch.Timezone, &ms.ch.UTCOffsetMinutes,
			&ms.userID, &ms.member.Strikes, &ms.member.LastCheckInPeriodKey,
			&ms.member.LastEvaluatedPeriodKey, &ms.member.JoinedAt,
		)
		if err != nil {
			log.Printf("MissedPeriodWorker: failed to scan membership: %v", err)
			continue
		}
		memberships = append(memberships, ms)
	}
	if err = rows.Err(); err != nil {
		log.Printf("MissedPeriodWorker: error iterating memberships: %v", err)
		return
	}

	for i := range memberships {
		if err := w.evaluate(ctx, &memberships[i]); err != nil {
			log.Printf("MissedPeriodWorker: evaluation failed for %s/%s: %v",
				memberships[i].ch.ID, memberships[i].userID, err)
		}
	}
}

func (w *MissedPeriodWorker) evaluate(ctx context.Context, ms *membership) error {
	zone := ms.ch.Zone()
	now := w.now()

	var prevKey string
	var err error
	if ms.ch.Cadence == period.UnitWeekly {
		prevKey, err = period.PreviousWeekKey(zone, ms.ch.WeekStartsOn, now)
	} else {
		prevKey, err = period.PreviousDayKey(zone, ms.ch.DueTimeLocal, now)
	}
	if err != nil {
		return err
	}

	// Already handled, period keys are monotonic strings.
	if ms.member.LastEvaluatedPeriodKey >= prevKey {
		return nil
	}

	// Members are not on the hook for periods before they joined.
	joinKey, err := period.DayKey(zone, ms.member.JoinedAt)
	if err != nil {
		return err
	}
	if prevKey < joinKey {
		return w.markEvaluated(ctx, ms, prevKey)
	}

	duePassed, err := period.DuePassed(zone, prevKey, ms.ch.DueTimeLocal, ms.ch.Cadence, now)
	if err != nil {
		return err
	}
	if !duePassed {
		return nil
	}

	var count int
	err = w.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM check_ins
		WHERE challenge_id = $1 AND user_id = $2 AND period_key = $3 AND status = $4`,
		ms.ch.ID, ms.userID, prevKey, checkin.StatusCompleted,
	).Scan(&count)
	if err != nil {
		return err
	}

	if count >= ms.ch.RequiredCount() {
		return w.markEvaluated(ctx, ms, prevKey)
	}

	return w.handleMiss(ctx, ms, prevKey)
}

func (w *MissedPeriodWorker) handleMiss(ctx context.Context, ms *membership, prevKey string) error {
	w.recordMissedCheckIn(ctx, ms, prevKey)

	used, err := w.streaks.UseStreakShield(ctx, ms.ch.ID, ms.userID)
	if err != nil {
		return err
	}

	if used {
		// The shield keeps the streak alive: advance the continuity anchor so
		// the next completed period still counts as consecutive.
		_, err = w.db.Exec(ctx, `
			UPDATE challenge_members
			SET last_check_in_period_key = $3, last_evaluated_period_key = $3, updated_at = NOW()
			WHERE challenge_id = $1 AND user_id = $2`,
			ms.ch.ID, ms.userID, prevKey,
		)
		if err != nil {
			return err
		}
		log.Printf("MissedPeriodWorker: shield absorbed miss for %s/%s period %s", ms.ch.ID, ms.userID, prevKey)
		return nil
	}

	if err := w.streaks.ResetStreak(ctx, ms.ch.ID, ms.userID); err != nil {
		return err
	}

	eliminated := ms.ch.Type == challenge.TypeElimination && ms.member.Strikes+1 >= eliminationStrikeLimit

	memberState := challenge.MemberActive
	if eliminated {
		memberState = challenge.MemberEliminated
	}

	_, err = w.db.Exec(ctx, `
		UPDATE challenge_members
		SET strikes = strikes + 1, state = $3, last_evaluated_period_key = $4, updated_at = NOW()
		WHERE challenge_id = $1 AND user_id = $2`,
		ms.ch.ID, ms.userID, memberState, prevKey,
	)
	if err != nil {
		return err
	}

	intentType := notification.NotificationStreakBroken
	if eliminated {
		intentType = notification.NotificationEliminated
	}
	_, err = w.notifService.Notify(ctx, &notification.CreateNotificationRequest{
		UserID: ms.userID,
		Type:   intentType,
		Data:   map[string]any{"challenge": ms.ch.Name, "period": prevKey},
	})
	if err != nil {
		log.Printf("MissedPeriodWorker: failed to notify %s: %v", ms.userID, err)
	}

	return nil
}

// recordMissedCheckIn is an audit record; best effort.
func (w *MissedPeriodWorker) recordMissedCheckIn(ctx context.Context, ms *membership, periodKey string) {
	_, err := w.db.Exec(ctx, `
		INSERT INTO check_ins (id, challenge_id, user_id, period_unit, period_key, status, on_time, done, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, false, NOW())`,
		uuid.New(), ms.ch.ID, ms.userID, ms.ch.Cadence, periodKey, checkin.StatusMissed,
	)
	if err != nil {
		log.Printf("MissedPeriodWorker: failed to record missed check-in for %s/%s: %v", ms.ch.ID, ms.userID, err)
	}
}

func (w *MissedPeriodWorker) markEvaluated(ctx context.Context, ms *membership, prevKey string) error {
	_, err := w.db.Exec(ctx, `
		UPDATE challenge_members
		SET last_evaluated_period_key = $3, updated_at = NOW()
		WHERE challenge_id = $1 AND user_id = $2`,
		ms.ch.ID, ms.userID, prevKey,
	)
	return err
}
