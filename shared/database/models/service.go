package models

import (
	"time"

	"github.com/google/uuid"
)

// OfficeService is a sellable offering listed under an office
type OfficeService struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	OfficeID        uuid.UUID `json:"office_id" gorm:"type:uuid;not null;index"`
	Name            string    `json:"name" gorm:"size:200;not null"`
	Description     string    `json:"description" gorm:"type:text"`
	PriceCents      int64     `json:"price_cents" gorm:"not null;default:0"`
	Currency        string    `json:"currency" gorm:"size:3;not null;default:'usd'"`
	DurationMinutes int       `json:"duration_minutes"`
	ImageURL        string    `json:"image_url"`
	ShareToken      string    `json:"share_token" gorm:"size:64;uniqueIndex;not null"`
	IsActive        bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	AverageRating float64 `json:"average_rating" gorm:"->;-:migration"`
	RatingCount   int64   `json:"rating_count" gorm:"->;-:migration"`

	Office *Office `json:"-" gorm:"foreignKey:OfficeID;constraint:OnDelete:CASCADE"`
}

type ServiceRating struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ServiceID uint      `json:"service_id" gorm:"not null;uniqueIndex:idx_service_rating_user"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_service_rating_user"`
	Score     int       `json:"score" gorm:"not null"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Service *OfficeService `json:"-" gorm:"foreignKey:ServiceID;constraint:OnDelete:CASCADE"`
	User    *User          `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
