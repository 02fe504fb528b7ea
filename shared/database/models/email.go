package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	FolderInbox    = "inbox"
	FolderSent     = "sent"
	FolderStarred  = "starred"
	FolderArchived = "archived"
)

// InternalEmail is stored once per recipient. Read, starred and archived
// flags belong to the recipient; the sender only sees the sent folder.
type InternalEmail struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	SenderID         *uuid.UUID `json:"sender_id" gorm:"type:uuid;index"`
	FromAddress      string     `json:"from_address" gorm:"size:255;not null"`
	RecipientID      uuid.UUID  `json:"recipient_id" gorm:"type:uuid;not null;index"`
	Subject          string     `json:"subject" gorm:"size:255;not null"`
	Body             string     `json:"body" gorm:"type:text"`
	IsRead           bool       `json:"is_read" gorm:"not null;default:false"`
	IsStarred        bool       `json:"is_starred" gorm:"not null;default:false"`
	IsArchived       bool       `json:"is_archived" gorm:"not null;default:false"`
	SenderDeleted    bool       `json:"-" gorm:"not null;default:false"`
	RecipientDeleted bool       `json:"-" gorm:"not null;default:false"`
	ReadAt           *time.Time `json:"read_at"`
	CreatedAt        time.Time  `json:"created_at"`

	Sender    *User `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	Recipient *User `json:"recipient,omitempty" gorm:"foreignKey:RecipientID"`
}

func ValidFolder(folder string) bool {
	switch folder {
	case FolderInbox, FolderSent, FolderStarred, FolderArchived:
		return true
	}
	return false
}
