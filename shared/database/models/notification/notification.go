package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationLevel represents the severity level of a notification
type NotificationLevel string

const (
	NotificationLevelSuccess NotificationLevel = "success"
	NotificationLevelError   NotificationLevel = "error"
	NotificationLevelWarning NotificationLevel = "warning"
	NotificationLevelInfo    NotificationLevel = "info"
)

// Notification types emitted by the platform
const (
	TypeTaskAssigned  = "task.assigned"
	TypeTaskStatus    = "task.status"
	TypeTaskAutomated = "task.automated"
	TypeTicketComment = "ticket.comment"
	TypeChatMessage   = "chat.message"
	TypeMeetingInvite = "meeting.invite"
	TypeCallIncoming  = "call.incoming"
	TypeOrderPaid     = "order.paid"
	TypeOrderFailed   = "order.failed"
	TypeOfficeMessage = "office.message"
	TypeEmailReceived = "email.received"
	TypePostLiked     = "post.liked"
	TypePostComment   = "post.comment"
)

// Notification is a persisted in-app notification for one user
type Notification struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	UserID    uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index:idx_notification_user_read"`
	Type      string            `json:"type" gorm:"type:varchar(50);not null"`
	Level     NotificationLevel `json:"level" gorm:"type:varchar(20);not null;default:'info'"`
	Title     string            `json:"title" gorm:"type:varchar(200);not null"`
	Message   string            `json:"message" gorm:"type:text;not null"`
	Link      string            `json:"link,omitempty" gorm:"type:varchar(500)"`
	Entity    string            `json:"entity,omitempty" gorm:"type:varchar(100)"`
	EntityID  string            `json:"entity_id,omitempty" gorm:"type:varchar(100)"`
	Data      datatypes.JSONMap `json:"data,omitempty" gorm:"type:jsonb"`
	IsRead    bool              `json:"is_read" gorm:"not null;default:false;index:idx_notification_user_read"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
}

// TableName returns the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// WebSocketMessage is the envelope for every realtime event
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewWebSocketMessage stamps an event with the current UTC time
func NewWebSocketMessage(eventType string, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
