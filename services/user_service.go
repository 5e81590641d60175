package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitPactAPI/internal/database"
	"habitPactAPI/internal/experience"
	"habitPactAPI/internal/user"
)

type UserService struct {
	db     database.Querier
	ledger *ExperienceService
}

func NewUserService(db database.Querier, ledger *ExperienceService) *UserService {
	return &UserService{db: db, ledger: ledger}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	u := &user.User{
		ID:         uuid.New(),
		ClerkID:    req.ClerkID,
		Email:      req.Email,
		Username:   req.Username,
		ImageURL:   req.ImageURL,
		Level:      1,
		LevelTitle: experience.StartingTitle,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, image_url, level, level_title, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		u.ID, u.ClerkID, u.Email, u.Username, u.ImageURL, u.Level, u.LevelTitle, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, username, image_url, xp, level, level_title,
		total_check_ins, longest_streak, on_time_check_ins, late_night_check_ins,
		created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.ImageURL, &u.XP, &u.Level, &u.LevelTitle,
		&u.TotalCheckIns, &u.LongestStreak, &u.OnTimeCheckIns, &u.LateNightCheckIns,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// GetProfile is the user aggregate plus derived progression fields.
func (s *UserService) GetProfile(ctx context.Context, clerkID string) (*user.ProfileResponse, error) {
	u, err := s.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	titles, err := s.ledger.GetUnlockedTitles(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get unlocked titles: %w", err)
	}

	return &user.ProfileResponse{
		User:           u,
		NextLevelXP:    experience.NextLevelXP(u.Level),
		UnlockedTitles: titles,
	}, nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}
