package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is a story that stays visible until ExpiresAt
type Status struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	UserID          uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Content         string    `json:"content" gorm:"type:text"`
	MediaURL        string    `json:"media_url"`
	MediaType       string    `json:"media_type" gorm:"size:20;not null;default:'text'"`
	BackgroundColor string    `json:"background_color" gorm:"size:20"`
	ExpiresAt       time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt       time.Time `json:"created_at"`

	ViewCount int64 `json:"view_count" gorm:"->;-:migration"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Status) TableName() string {
	return "statuses"
}

// IsExpired matches the read-time filter expires_at > now
func (s *Status) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

type StatusView struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	StatusID uint      `json:"status_id" gorm:"not null;uniqueIndex:idx_status_viewer"`
	ViewerID uuid.UUID `json:"viewer_id" gorm:"type:uuid;not null;uniqueIndex:idx_status_viewer"`
	ViewedAt time.Time `json:"viewed_at" gorm:"autoCreateTime"`

	Status *Status `json:"-" gorm:"foreignKey:StatusID;constraint:OnDelete:CASCADE"`
	Viewer *User   `json:"viewer,omitempty" gorm:"foreignKey:ViewerID"`
}
