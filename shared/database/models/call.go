package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CallRinging  = "ringing"
	CallAccepted = "accepted"
	CallDeclined = "declined"
	CallEnded    = "ended"
	CallMissed   = "missed"
)

type VideoCall struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	RoomID    string     `json:"room_id" gorm:"size:64;uniqueIndex;not null"`
	CallerID  uuid.UUID  `json:"caller_id" gorm:"type:uuid;not null;index"`
	CalleeID  uuid.UUID  `json:"callee_id" gorm:"type:uuid;not null;index"`
	Kind      string     `json:"kind" gorm:"size:10;not null;default:'video'"`
	Status    string     `json:"status" gorm:"size:20;not null;default:'ringing'"`
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Caller *User `json:"caller,omitempty" gorm:"foreignKey:CallerID"`
	Callee *User `json:"callee,omitempty" gorm:"foreignKey:CalleeID"`
}

var callTransitions = map[string][]string{
	CallRinging:  {CallAccepted, CallDeclined, CallMissed, CallEnded},
	CallAccepted: {CallEnded},
}

// CallCanTransition reports whether a call in status from may move to status to
func CallCanTransition(from, to string) bool {
	for _, next := range callTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsParty reports whether userID is the caller or the callee
func (c *VideoCall) IsParty(userID uuid.UUID) bool {
	return c.CallerID == userID || c.CalleeID == userID
}

// Peer returns the other side of the call
func (c *VideoCall) Peer(userID uuid.UUID) uuid.UUID {
	if c.CallerID == userID {
		return c.CalleeID
	}
	return c.CallerID
}
