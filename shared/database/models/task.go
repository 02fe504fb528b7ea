package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Automation relay states for a task
const (
	AutomationQueued    = "queued"
	AutomationFailed    = "failed"
	AutomationCompleted = "completed"
)

type Task struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	Title            string         `json:"title" gorm:"size:255;not null"`
	Description      string         `json:"description" gorm:"type:text"`
	Status           string         `json:"status" gorm:"size:20;not null;default:'pending';index"`
	Priority         string         `json:"priority" gorm:"size:20;not null;default:'medium'"`
	AssigneeID       *uuid.UUID     `json:"assignee_id" gorm:"type:uuid;index"`
	CreatorID        uuid.UUID      `json:"creator_id" gorm:"type:uuid;not null;index"`
	DueDate          *time.Time     `json:"due_date"`
	CompletedAt      *time.Time     `json:"completed_at"`
	AutomationStatus string         `json:"automation_status,omitempty" gorm:"size:20"`
	AutomationResult datatypes.JSON `json:"automation_result,omitempty"`
	AutomatedAt      *time.Time     `json:"automated_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	// Relations
	Assignee *User `json:"assignee,omitempty" gorm:"foreignKey:AssigneeID"`
	Creator  *User `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
}

func ValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

func ValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
