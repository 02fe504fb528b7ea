package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform roles
const (
	RoleMember       = "member"
	RoleManager      = "manager"
	RoleAdmin        = "admin"
	RoleSuperAdmin   = "super_admin"
	RoleOfficeRenter = "office_renter"
	RoleVisitor      = "visitor"
)

// Presence states
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceBusy    = "busy"
	PresenceOffline = "offline"
)

var Roles = []string{RoleMember, RoleManager, RoleAdmin, RoleSuperAdmin, RoleOfficeRenter, RoleVisitor}

var presenceStates = []string{PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline}

type User struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email      string     `json:"email" gorm:"uniqueIndex;not null"`
	Username   string     `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Password   string     `json:"-" gorm:"not null"`
	FirstName  string     `json:"first_name" gorm:"size:100"`
	LastName   string     `json:"last_name" gorm:"size:100"`
	Phone      string     `json:"phone" gorm:"size:20"`
	Avatar     string     `json:"avatar"`
	JobTitle   string     `json:"job_title" gorm:"size:150"`
	Department string     `json:"department" gorm:"size:150"`
	Bio        string     `json:"bio" gorm:"type:text"`
	Role       string     `json:"role" gorm:"size:30;not null;default:'member';index"`
	Presence   string     `json:"presence" gorm:"size:20;not null;default:'offline'"`
	LastSeenAt *time.Time `json:"last_seen_at"`
	IsActive   bool       `json:"is_active" gorm:"not null;default:true"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FullName returns the display name, falling back to the username
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// HasRole reports whether the user's role is one of roles
func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin is true for admin and super_admin
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin, RoleSuperAdmin)
}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

func ValidPresence(presence string) bool {
	for _, p := range presenceStates {
		if p == presence {
			return true
		}
	}
	return false
}
