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
	"github.com/jackc/pgx/v5/pgconn"

	"habitPactAPI/internal/database"
	"habitPactAPI/internal/experience"
	"habitPactAPI/internal/notification"
	"habitPactAPI/internal/period"
	"habitPactAPI/internal/timezone"
	"habitPactAPI/internal/types/challenge"
	"habitPactAPI/internal/types/checkin"
)

// lateNightCutoffHour: submissions between midnight and this local hour
// count toward the late-night counter.
const lateNightCutoffHour = 4

// uniqueViolation is the SQLSTATE the store raises when the completed
// check-in uniqueness constraint fires.
const uniqueViolation = "23505"

// CheckInService coordinates one submission end to end: legality checks,
// period assignment, the check-in write, then streak and XP updates. The
// daily-completion bonus and achievement sweep run on a background queue
// whose failures never reach the caller.
type CheckInService struct {
	db           database.Querier
	streaks      *StreakService
	ledger       *ExperienceService
	achievements *AchievementService
	notifService *NotificationService

	now func() time.Time

	jobs     chan progressionJob
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// progressionJob carries everything the background steps need, including the
// submission's own clock reading, so the worker never touches service state
// that a test clock may be rewriting concurrently.
type progressionJob struct {
	userID    uuid.UUID
	baseXP    int
	now       time.Time
	evalBonus bool
}

func NewCheckInService(db database.Querier, streaks *StreakService, ledger *ExperienceService, achievements *AchievementService, notifService *NotificationService) *CheckInService {
	s := &CheckInService{
		db:           db,
		streaks:      streaks,
		ledger:       ledger,
		achievements: achievements,
		notifService: notifService,
		now:          time.Now,
		jobs:         make(chan progressionJob, 100),
		quit:         make(chan struct{}),
	}

	s.wg.Add(1)
	go s.backgroundWorker()

	return s
}

// SetClock overrides the time source. Test hook.
func (s *CheckInService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *CheckInService) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()
}

// SubmitCheckIn validates and persists one check-in, then updates streak and
// XP. It returns one of the checkin sentinel errors for user-correctable
// rejections; any store error means the submission did not happen.
func (s *CheckInService) SubmitCheckIn(ctx context.Context, clerkID string, req *checkin.SubmitRequest) (*checkin.SubmitResult, error) {
	userID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.getChallenge(ctx, req.ChallengeID)
	if err != nil {
		return nil, err
	}

	if ch.State == challenge.StateEnded {
		return nil, checkin.ErrChallengeEnded
	}

	member, err := s.getMember(ctx, ch.ID, userID)
	if err != nil {
		return nil, err
	}

	if ch.Type == challenge.TypeElimination && member.State == challenge.MemberEliminated {
		return nil, checkin.ErrEliminated
	}

	now := s.now()

	if ch.Type == challenge.TypeDeadline && ch.DeadlineAt != nil && now.After(*ch.DeadlineAt) {
		return nil, checkin.ErrDeadlinePassed
	}

	zone := ch.Zone()
	periodKey, err := s.resolvePeriodKey(ch, zone, now)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve period: %w", err)
	}

	onTime, lateNight := s.timelinessOf(ch, zone, periodKey, now)

	record := &checkin.CheckIn{
		ID:          uuid.New(),
		ChallengeID: ch.ID,
		UserID:      userID,
		PeriodUnit:  ch.Cadence,
		PeriodKey:   periodKey,
		Status:      checkin.StatusCompleted,
		OnTime:      onTime,
		Done:        req.Done,
		Amount:      req.Amount,
		Note:        req.Note,
		DurationSec: req.DurationSec,
		Attachments: req.Attachments,
		CreatedAt:   now,
	}

	if ch.Cadence == period.UnitWeekly {
		err = s.insertWeekly(ctx, ch, record)
	} else {
		err = s.insertDaily(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	// Everything below is computed from an already persisted check-in and
	// degrades to zero results instead of failing the submission.
	s.bumpTimelinessCounters(ctx, userID, onTime, lateNight)

	streakRes, err := s.streaks.UpdateStreak(ctx, ch.ID, userID, periodKey, ch.Cadence)
	if err != nil {
		log.Printf("SubmitCheckIn: streak update failed for %s/%s: %v", ch.ID, userID, err)
		streakRes = &checkin.StreakResult{}
	}

	xpRes, err := s.ledger.AwardCheckInXP(ctx, userID, onTime, streakRes.CurrentStreak, streakRes.LongestStreak)
	if err != nil {
		log.Printf("SubmitCheckIn: xp award failed for %s: %v", userID, err)
		xpRes = &checkin.XPResult{}
	}

	s.emitProgressionIntents(ctx, userID, streakRes, xpRes)

	// The daily-complete bonus only makes sense for the submission that can
	// finish the daily set, so weekly submissions skip that step entirely.
	job := progressionJob{
		userID:    userID,
		baseXP:    experience.BaseCheckInXP,
		now:       now,
		evalBonus: ch.Cadence == period.UnitDaily,
	}
	select {
	case s.jobs <- job:
	default:
		log.Printf("SubmitCheckIn: progression queue full, skipping background steps for %s", userID)
	}

	return &checkin.SubmitResult{
		CheckIn: record,
		Streak:  streakRes,
		XP:      xpRes,
	}, nil
}

// resolvePeriodKey assigns the submission to the active commitment window.
func (s *CheckInService) resolvePeriodKey(ch *challenge.Challenge, zone period.ZoneSpec, now time.Time) (string, error) {
	if ch.Cadence == period.UnitWeekly {
		return period.CurrentWeekKey(zone, ch.WeekStartsOn, now)
	}
	return period.CurrentDayKey(zone, ch.DueTimeLocal, now)
}

// timelinessOf computes the on-time and late-night flags. On time means the
// owning period's due moment is still more than one hour away; daily only.
func (s *CheckInService) timelinessOf(ch *challenge.Challenge, zone period.ZoneSpec, periodKey string, now time.Time) (bool, bool) {
	onTime := false
	if ch.Cadence == period.UnitDaily {
		due, err := period.DueMoment(zone, periodKey, ch.DueTimeLocal, period.UnitDaily)
		if err != nil {
			log.Printf("SubmitCheckIn: failed to compute due moment for %s: %v", ch.ID, err)
		} else {
			onTime = due.Sub(now) > time.Hour
		}
	}

	lateNight := false
	if loc, err := zone.Location(); err == nil {
		hour := timezone.WallClockInZone(now, loc).Hour
		lateNight = hour < lateNightCutoffHour
	}

	return onTime, lateNight
}

// insertDaily writes the check-in and relies on the store's uniqueness
// constraint on (challenge_id, user_id, period_key, status=completed) for
// duplicate prevention, so two racing submissions cannot both land.
func (s *CheckInService) insertDaily(ctx context.Context, record *checkin.CheckIn) error {
	return s.insertCheckIn(ctx, s.db, record)
}

// insertWeekly counts and writes inside one transaction. The member row is
// locked first so concurrent submissions for the same member serialize; a
// plain count-then-insert would let two writers both pass the check.
func (s *CheckInService) insertWeekly(ctx context.Context, ch *challenge.Challenge, record *checkin.CheckIn) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`SELECT 1 FROM challenge_members WHERE challenge_id = $1 AND user_id = $2 FOR UPDATE`,
		record.ChallengeID, record.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to lock member row: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM check_ins
		WHERE challenge_id = $1 AND user_id = $2 AND period_key = $3 AND status = $4`,
		record.ChallengeID, record.UserID, record.PeriodKey, checkin.StatusCompleted,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count check-ins: %w", err)
	}

	if count >= ch.RequiredCount() {
		return checkin.ErrAlreadyCheckedIn
	}

	if err := s.insertCheckIn(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit check-in: %w", err)
	}
	return nil
}

// rowExecutor is satisfied by both the pool and a transaction.
type rowExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (s *CheckInService) insertCheckIn(ctx context.Context, q rowExecutor, record *checkin.CheckIn) error {
	_, err := q.Exec(ctx, `
		INSERT INTO check_ins (id, challenge_id, user_id, period_unit, period_key, status, on_time, done, amount, note, duration_sec, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.ID, record.ChallengeID, record.UserID, record.PeriodUnit, record.PeriodKey,
		record.Status, record.OnTime, record.Done, record.Amount, record.Note,
		record.DurationSec, record.Attachments, record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return checkin.ErrAlreadyCheckedIn
		}
		return fmt.Errorf("failed to insert check-in: %w", err)
	}
	return nil
}

// bumpTimelinessCounters is best effort; a failure never aborts the
// submission.
func (s *CheckInService) bumpTimelinessCounters(ctx context.Context, userID uuid.UUID, onTime, lateNight bool) {
	if !onTime && !lateNight {
		return
	}

	onTimeInc, lateNightInc := 0, 0
	if onTime {
		onTimeInc = 1
	}
	if lateNight {
		lateNightInc = 1
	}

	_, err := s.db.Exec(ctx, `
		UPDATE users
		SET on_time_check_ins = on_time_check_ins + $2,
			late_night_check_ins = late_night_check_ins + $3,
			updated_at = NOW()
		WHERE id = $1`,
		userID, onTimeInc, lateNightInc,
	)
	if err != nil {
		log.Printf("SubmitCheckIn: failed to bump timeliness counters for %s: %v", userID, err)
	}
}

func (s *CheckInService) emitProgressionIntents(ctx context.Context, userID uuid.UUID, streakRes *checkin.StreakResult, xpRes *checkin.XPResult) {
	if streakRes.ShieldEarned {
		s.notify(ctx, userID, notification.NotificationShieldEarned, map[string]any{"streak": streakRes.CurrentStreak})
	}
	if streakRes.Milestone {
		s.notify(ctx, userID, notification.NotificationStreakMilestone, map[string]any{"streak": streakRes.CurrentStreak})
	}
	if xpRes.LeveledUp {
		s.notify(ctx, userID, notification.NotificationLevelUp, map[string]any{"level": xpRes.Level, "title": xpRes.Title})
	}
}

func (s *CheckInService) notify(ctx context.Context, userID uuid.UUID, t notification.NotificationType, data map[string]any) {
	_, err := s.notifService.Notify(ctx, &notification.CreateNotificationRequest{
		UserID: userID,
		Type:   t,
		Data:   data,
	})
	if err != nil {
		log.Printf("SubmitCheckIn: failed to emit %s intent for %s: %v", t, userID, err)
	}
}

func (s *CheckInService) backgroundWorker() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobs:
			s.runBackgroundSteps(job)
		case <-s.quit:
			// Drain what was already queued so Stop is deterministic.
			for {
				select {
				case job := <-s.jobs:
					s.runBackgroundSteps(job)
				default:
					return
				}
			}
		}
	}
}

func (s *CheckInService) runBackgroundSteps(job progressionJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if job.evalBonus {
		if err := s.CheckAndAwardDailyCompleteBonus(ctx, job.userID, job.baseXP, job.now); err != nil {
			log.Printf("DailyCompleteBonus: evaluation failed for %s: %v", job.userID, err)
		}
	}

	if _, err := s.achievements.CheckAndAwardAchievements(ctx, job.userID); err != nil {
		log.Printf("Achievements: evaluation failed for %s: %v", job.userID, err)
	}
}

// CheckAndAwardDailyCompleteBonus awards bonus XP when every active daily
// challenge the user participates in has a completed check-in for its
// current period as of the submission instant. The bonus tops the triggering
// check-in's base XP up to base times the multiplier, through the XP-only
// path so it never counts as an extra check-in.
func (s *CheckInService) CheckAndAwardDailyCompleteBonus(ctx context.Context, userID uuid.UUID, baseXP int, now time.Time) error {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.due_time_local, c.timezone, c.utc_offset_minutes
		FROM challenges c
		INNER JOIN challenge_members m ON m.challenge_id = c.id
		WHERE m.user_id = $1 AND m.state = $2 AND c.state = $3 AND c.cadence = $4`,
		userID, challenge.MemberActive, challenge.StateActive, period.UnitDaily,
	)
	if err != nil {
		return fmt.Errorf("failed to fetch daily challenges: %w", err)
	}
	defer rows.Close()

	type dailyChallenge struct {
		id            uuid.UUID
		dueTimeLocal  string
		tz            string
		offsetMinutes int
	}

	var dailies []dailyChallenge
	for rows.Next() {
		var d dailyChallenge
		if err := rows.Scan(&d.id, &d.dueTimeLocal, &d.tz, &d.offsetMinutes); err != nil {
			return fmt.Errorf("failed to scan challenge: %w", err)
		}
		dailies = append(dailies, d)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	if len(dailies) == 0 {
		return nil
	}

	for _, d := range dailies {
		zone := period.IanaZone(d.tz)
		if d.tz == "" {
			zone = period.FixedOffset(d.offsetMinutes)
		}

		key, err := period.CurrentDayKey(zone, d.dueTimeLocal, now)
		if err != nil {
			return fmt.Errorf("failed to resolve period for %s: %w", d.id, err)
		}

		var done bool
		err = s.db.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM check_ins
				WHERE challenge_id = $1 AND user_id = $2 AND period_key = $3 AND status = $4
			)`,
			d.id, userID, key, checkin.StatusCompleted,
		).Scan(&done)
		if err != nil {
			return fmt.Errorf("failed to check completion for %s: %w", d.id, err)
		}

		if !done {
			return nil
		}
	}

	bonus := baseXP * (experience.DailyCompleteMultiplier - 1)
	if bonus <= 0 {
		return nil
	}

	if _, err := s.ledger.AwardXPOnly(ctx, userID, bonus); err != nil {
		return fmt.Errorf("failed to award daily complete bonus: %w", err)
	}

	log.Printf("DailyCompleteBonus: awarded %d bonus XP to %s", bonus, userID)
	return nil
}

func (s *CheckInService) getChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	ch := &challenge.Challenge{}
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, admin_id, type, state, cadence, required_per_week,
			week_starts_on, due_time_local, COALESCE(timezone, ''), COALESCE(utc_offset_minutes, 0),
			deadline_at, winner_id, created_at, updated_at
		FROM challenges WHERE id = $1`,
		id,
	).Scan(
		&ch.ID, &ch.Name, &ch.Description, &ch.AdminID, &ch.Type, &ch.State, &ch.Cadence,
		&ch.RequiredPerWeek, &ch.WeekStartsOn, &ch.DueTimeLocal, &ch.Timezone,
		&ch.UTCOffsetMinutes, &ch.DeadlineAt, &ch.WinnerID, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("challenge not found")
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return ch, nil
}

func (s *CheckInService) getMember(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Member, error) {
	m := &challenge.Member{}
	err := s.db.QueryRow(ctx, `
		SELECT challenge_id, user_id, state, strikes, current_streak, longest_streak,
			streak_shields, streak_shield_used, last_check_in_period_key,
			last_evaluated_period_key, joined_at, updated_at
		FROM challenge_members WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID,
	).Scan(
		&m.ChallengeID, &m.UserID, &m.State, &m.Strikes, &m.CurrentStreak, &m.LongestStreak,
		&m.StreakShields, &m.StreakShieldUsed, &m.LastCheckInPeriodKey,
		&m.LastEvaluatedPeriodKey, &m.JoinedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkin.ErrNotMember
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

func (s *CheckInService) userIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("user not found")
		}
		return uuid.Nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return userID, nil
}
