package models

import (
	"time"

	"github.com/google/uuid"
)

type ChatThread struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	Name          string     `json:"name" gorm:"size:200"`
	IsGroup       bool       `json:"is_group" gorm:"not null;default:false"`
	DirectKey     *string    `json:"-" gorm:"size:80;uniqueIndex"`
	CreatedByID   uuid.UUID  `json:"created_by_id" gorm:"type:uuid;not null"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ChatParticipant struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	ThreadID          uint      `json:"thread_id" gorm:"not null;uniqueIndex:idx_chat_participant"`
	UserID            uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_chat_participant;index"`
	LastReadMessageID *uint     `json:"last_read_message_id"`
	JoinedAt          time.Time `json:"joined_at" gorm:"autoCreateTime"`

	Thread *ChatThread `json:"-" gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
	User   *User       `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// ChatMessage ids grow with insertion order; unread counting relies on it.
type ChatMessage struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ThreadID      uint      `json:"thread_id" gorm:"not null;index:idx_chat_message_thread"`
	SenderID      uuid.UUID `json:"sender_id" gorm:"type:uuid;not null"`
	Body          string    `json:"body" gorm:"type:text;not null"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	Thread *ChatThread `json:"-" gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
	Sender *User       `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
}

// ThreadSummary is the thread list entry shown to a participant
type ThreadSummary struct {
	ChatThread
	Participants []ChatParticipant `json:"participants"`
	LastMessage  *ChatMessage      `json:"last_message"`
	UnreadCount  int64             `json:"unread_count"`
}
