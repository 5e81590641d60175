package notification

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType names the intents the progression engine emits. Delivery
// is handled by the dispatcher; the engine only records the request.
type NotificationType string

const (
	NotificationShieldEarned    NotificationType = "shield_earned"
	NotificationStreakMilestone NotificationType = "streak_milestone"
	NotificationLevelUp         NotificationType = "level_up"
	NotificationAchievement     NotificationType = "achievement"
	NotificationEliminated      NotificationType = "eliminated"
	NotificationStreakBroken    NotificationType = "streak_broken"
	NotificationChallengeEnded  NotificationType = "challenge_ended"
)

type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

type Notification struct {
	ID        uuid.UUID          `json:"id" db:"id"`
	UserID    uuid.UUID          `json:"user_id" db:"user_id"`
	Type      NotificationType   `json:"type" db:"type"`
	Status    NotificationStatus `json:"status" db:"status"`
	Title     string             `json:"title" db:"title"`
	Body      string             `json:"body" db:"body"`
	IsRead    bool               `json:"is_read" db:"is_read"`
	Data      map[string]any     `json:"data" db:"data"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type CreateNotificationRequest struct {
	UserID uuid.UUID        `json:"user_id"`
	Type   NotificationType `json:"type"`
	Data   map[string]any   `json:"data"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

type NotificationListResponse struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
}
