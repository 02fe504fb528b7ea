package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RSVPPending   = "pending"
	RSVPAccepted  = "accepted"
	RSVPDeclined  = "declined"
	RSVPTentative = "tentative"
)

type Meeting struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Location    string    `json:"location" gorm:"size:255"`
	MeetingURL  string    `json:"meeting_url"`
	StartsAt    time.Time `json:"starts_at" gorm:"not null;index"`
	EndsAt      time.Time `json:"ends_at" gorm:"not null"`
	OrganizerID uuid.UUID `json:"organizer_id" gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Participants []MeetingParticipant `json:"participants,omitempty" gorm:"-"`
}

type MeetingParticipant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	MeetingID uint      `json:"meeting_id" gorm:"not null;uniqueIndex:idx_meeting_participant"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_meeting_participant;index"`
	Response  string    `json:"response" gorm:"size:20;not null;default:'pending'"`
	UpdatedAt time.Time `json:"updated_at"`

	Meeting *Meeting `json:"-" gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE"`
	User    *User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func ValidRSVP(response string) bool {
	switch response {
	case RSVPAccepted, RSVPDeclined, RSVPTentative:
		return true
	}
	return false
}
