package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"habitPactAPI/internal/database"
	"habitPactAPI/internal/notification"
)

// NotificationService records notification intents emitted by the
// progression engine and hands them to the dispatcher. It never delivers
// anything itself; delivery is the dispatcher's job, behind a provider
// interface.
type NotificationService struct {
	db         database.Querier
	dispatcher *NotificationDispatcher
}

func NewNotificationService(db database.Querier) *NotificationService {
	service := &NotificationService{db: db}
	service.dispatcher = NewNotificationDispatcher(service)
	return service
}

// SetPushProvider injects the real push provider from main.go. Without one
// the dispatcher only marks intents as sent.
func (s *NotificationService) SetPushProvider(provider PushNotificationProvider) {
	s.dispatcher.SetPushProvider(provider)
}

func (s *NotificationService) Stop() {
	s.dispatcher.Stop()
}

// Notify records one intent and queues it for dispatch. All engine call
// sites treat errors here as non-critical.
func (s *NotificationService) Notify(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	title, body := renderIntent(req.Type, req.Data)
	dataJSON, _ := json.Marshal(req.Data)

	query := `
	INSERT INTO notifications (user_id, type, status, title, body, data)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at
	`

	notif := &notification.Notification{
		UserID: req.UserID,
		Type:   req.Type,
		Status: notification.StatusPending,
		Title:  title,
		Body:   body,
		Data:   req.Data,
	}

	err := s.db.QueryRow(ctx, query,
		req.UserID, req.Type, notification.StatusPending, title, body, dataJSON,
	).Scan(&notif.ID, &notif.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.dispatcher.Dispatch(notif)
	return notif, nil
}

// renderIntent builds the user-facing text for an intent type.
func renderIntent(t notification.NotificationType, data map[string]any) (string, string) {
	switch t {
	case notification.NotificationShieldEarned:
		return "Shield earned!", fmt.Sprintf("Your %v period streak earned you a streak shield.", data["streak"])
	case notification.NotificationStreakMilestone:
		return "Streak milestone!", fmt.Sprintf("You reached a %v period streak. Keep it going!", data["streak"])
	case notification.NotificationLevelUp:
		return "Level up!", fmt.Sprintf("You reached level %v: %v", data["level"], data["title"])
	case notification.NotificationAchievement:
		return "Achievement unlocked!", fmt.Sprintf("%v", data["name"])
	case notification.NotificationEliminated:
		return "Eliminated", fmt.Sprintf("You missed a check-in and were eliminated from %v.", data["challenge"])
	case notification.NotificationStreakBroken:
		return "Streak broken", fmt.Sprintf("You missed a check-in for %v. Your streak starts over.", data["challenge"])
	case notification.NotificationChallengeEnded:
		return "Challenge ended", fmt.Sprintf("%v has ended.", data["challenge"])
	}
	return "habitPact", "You have a new update."
}

func (s *NotificationService) GetNotifications(ctx context.Context, clerkID string, page, pageSize int) (*notification.NotificationListResponse, error) {
	userID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, type, status, title, body, is_read, data, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, pageSize, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	notifs := []*notification.Notification{}
	for rows.Next() {
		n := &notification.Notification{}
		var dataJSON []byte
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Status, &n.Title, &n.Body, &n.IsRead, &dataJSON, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		json.Unmarshal(dataJSON, &n.Data)
		notifs = append(notifs, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	unread, err := s.unreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &notification.NotificationListResponse{
		Notifications: notifs,
		UnreadCount:   unread,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, clerkID string) (int, error) {
	userID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return 0, err
	}
	return s.unreadCount(ctx, userID)
}

func (s *NotificationService) unreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notifID uuid.UUID, clerkID string) error {
	userID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`,
		notifID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, clerkID string) error {
	userID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	userID, err := s.userIDByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO device_tokens (user_id, token, platform, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token) DO UPDATE SET user_id = $1, platform = $3`,
		userID, req.Token, req.Platform,
	)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx,
		`SELECT token, platform FROM device_tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *NotificationService) userIDByClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
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
