package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitPactAPI/internal/database"
	"habitPactAPI/internal/notification"
	"habitPactAPI/internal/period"
	"habitPactAPI/internal/timezone"
	"habitPactAPI/internal/types/challenge"
)

// ChallengeService owns the challenge lifecycle: creation, membership and
// the ended transition. Challenges are never deleted while active.
type ChallengeService struct {
	db           database.Querier
	notifService *NotificationService
}

func NewChallengeService(db database.Querier, notifService *NotificationService) *ChallengeService {
	return &ChallengeService{
		db:           db,
		notifService: notifService,
	}
}

// CreateChallenge validates and persists a new challenge with the creator
// as admin, then joins the creator as its first member. The due time is a
// wall-clock string interpreted in the admin's zone.
func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	adminID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if err := validateChallengeRequest(req); err != nil {
		return nil, err
	}

	ch := &challenge.Challenge{
		ID:              uuid.New(),
		Name:            req.Name,
		Description:     req.Description,
		AdminID:         adminID,
		Type:            req.Type,
		State:           challenge.StateActive,
		Cadence:         req.Cadence,
		RequiredPerWeek: req.RequiredPerWeek,
		WeekStartsOn:    req.WeekStartsOn,
		DueTimeLocal:    req.DueTimeLocal,
		Timezone:        req.Timezone,
		DeadlineAt:      req.DeadlineAt,
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO challenges (id, name, description, admin_id, type, state, cadence,
			required_per_week, week_starts_on, due_time_local, timezone, deadline_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING created_at, updated_at`,
		ch.ID, ch.Name, ch.Description, ch.AdminID, ch.Type, ch.State, ch.Cadence,
		ch.RequiredPerWeek, ch.WeekStartsOn, ch.DueTimeLocal, ch.Timezone, ch.DeadlineAt,
	).Scan(&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	if _, err := s.addMember(ctx, ch.ID, adminID); err != nil {
		log.Printf("CreateChallenge: failed to join admin %s to %s: %v", adminID, ch.ID, err)
	}

	return ch, nil
}

func validateChallengeRequest(req *challenge.CreateChallengeRequest) error {
	if req.Name == "" {
		return fmt.Errorf("challenge name is required")
	}

	switch req.Type {
	case challenge.TypeStandard, challenge.TypeProgress, challenge.TypeElimination, challenge.TypeDeadline:
	default:
		return fmt.Errorf("invalid challenge type %q", req.Type)
	}

	switch req.Cadence {
	case period.UnitDaily:
	case period.UnitWeekly:
		if req.RequiredPerWeek < 0 || req.RequiredPerWeek > 7 {
			return fmt.Errorf("required_per_week must be between 0 and 7")
		}
		if req.WeekStartsOn < 0 || req.WeekStartsOn > 6 {
			return fmt.Errorf("week_starts_on must be between 0 and 6")
		}
	default:
		return fmt.Errorf("invalid cadence %q", req.Cadence)
	}

	if _, err := time.Parse("15:04", req.DueTimeLocal); err != nil {
		return fmt.Errorf("invalid due time %q, expected HH:MM", req.DueTimeLocal)
	}

	if req.Timezone == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := timezone.Location(req.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q", req.Timezone)
	}

	if req.Type == challenge.TypeDeadline && req.DeadlineAt == nil {
		return fmt.Errorf("deadline challenges require deadline_at")
	}

	return nil
}

// JoinChallenge creates the member record for the requesting user. Joining
// twice returns the existing membership.
func (s *ChallengeService) JoinChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.Member, error) {
	userID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var state challenge.State
	err = s.db.QueryRow(ctx, `SELECT state FROM challenges WHERE id = $1`, challengeID).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("challenge not found")
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	if state == challenge.StateEnded {
		return nil, fmt.Errorf("challenge has ended")
	}

	return s.addMember(ctx, challengeID, userID)
}

func (s *ChallengeService) addMember(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Member, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO challenge_members (challenge_id, user_id, state, joined_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (challenge_id, user_id) DO NOTHING`,
		challengeID, userID, challenge.MemberActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	m := &challenge.Member{}
	err = s.db.QueryRow(ctx, `
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
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	return m, nil
}

// EndChallenge transitions the challenge to ended. Only the admin may end
// it; elimination challenges may record a winner.
func (s *ChallengeService) EndChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID, req *challenge.EndChallengeRequest) error {
	adminID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE challenges
		SET state = $3, winner_id = $4, updated_at = NOW()
		WHERE id = $1 AND admin_id = $2 AND state = $5`,
		challengeID, adminID, challenge.StateEnded, req.WinnerID, challenge.StateActive,
	)
	if err != nil {
		return fmt.Errorf("failed to end challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("challenge not found or not owned by caller")
	}

	s.notifyMembersEnded(ctx, challengeID)
	return nil
}

// notifyMembersEnded is best effort.
func (s *ChallengeService) notifyMembersEnded(ctx context.Context, challengeID uuid.UUID) {
	rows, err := s.db.Query(ctx, `
		SELECT m.user_id, c.name
		FROM challenge_members m
		INNER JOIN challenges c ON c.id = m.challenge_id
		WHERE m.challenge_id = $1`,
		challengeID,
	)
	if err != nil {
		log.Printf("EndChallenge: failed to list members of %s: %v", challengeID, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var userID uuid.UUID
		var name string
		if err := rows.Scan(&userID, &name); err != nil {
			continue
		}
		_, err := s.notifService.Notify(ctx, &notification.CreateNotificationRequest{
			UserID: userID,
			Type:   notification.NotificationChallengeEnded,
			Data:   map[string]any{"challenge": name},
		})
		if err != nil {
			log.Printf("EndChallenge: failed to notify %s: %v", userID, err)
		}
	}
}

// ListForUser returns every challenge the user participates in, paired with
// their member record.
func (s *ChallengeService) ListForUser(ctx context.Context, clerkID string) ([]*challenge.WithMembership, error) {
	userID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.name, c.description, c.admin_id, c.type, c.state, c.cadence,
			c.required_per_week, c.week_starts_on, c.due_time_local, COALESCE(c.timezone, ''),
			COALESCE(c.utc_offset_minutes, 0), c.deadline_at, c.winner_id, c.created_at, c.updated_at,
			m.state, m.strikes, m.current_streak, m.longest_streak, m.streak_shields,
			m.streak_shield_used, m.last_check_in_period_key, m.last_evaluated_period_key,
			m.joined_at, m.updated_at
		FROM challenges c
		INNER JOIN challenge_members m ON m.challenge_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenges: %w", err)
	}
	defer rows.Close()

	result := []*challenge.WithMembership{}
	for rows.Next() {
		ch := &challenge.Challenge{}
		m := &challenge.Member{UserID: userID}
		err := rows.Scan(
			&ch.ID, &ch.Name, &ch.Description, &ch.AdminID, &ch.Type, &ch.State, &ch.Cadence,
			&ch.RequiredPerWeek, &ch.WeekStartsOn, &ch.DueTimeLocal, &ch.Timezone,
			&ch.UTCOffsetMinutes, &ch.DeadlineAt, &ch.WinnerID, &ch.CreatedAt, &ch.UpdatedAt,
			&m.State, &m.Strikes, &m.CurrentStreak, &m.LongestStreak, &m.StreakShields,
			&m.StreakShieldUsed, &m.LastCheckInPeriodKey, &m.LastEvaluatedPeriodKey,
			&m.JoinedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		m.ChallengeID = ch.ID
		result = append(result, &challenge.WithMembership{Challenge: ch, Member: m})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

func (s *ChallengeService) userIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
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
