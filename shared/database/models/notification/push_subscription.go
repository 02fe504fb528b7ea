package notification

import (
	"time"

	"github.com/google/uuid"
)

// PushSubscription is a browser web-push endpoint registered by a user
type PushSubscription struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Endpoint  string    `json:"endpoint" gorm:"type:text;not null;uniqueIndex"`
	P256dh    string    `json:"p256dh" gorm:"type:text;not null"`
	Auth      string    `json:"auth" gorm:"type:varchar(255);not null"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
