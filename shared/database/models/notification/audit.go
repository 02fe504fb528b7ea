package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog represents an administrative action taken through the API
type AuditLog struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	UserID     *uuid.UUID        `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Action     string            `json:"action" gorm:"type:varchar(100);not null;index"`
	Method     string            `json:"method" gorm:"type:varchar(10);not null"`
	Path       string            `json:"path" gorm:"type:varchar(500);not null"`
	StatusCode int               `json:"status_code" gorm:"not null;index"`
	Details    datatypes.JSONMap `json:"details,omitempty" gorm:"type:jsonb"`
	IPAddress  string            `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent  string            `json:"user_agent" gorm:"type:text"`
	Duration   int64             `json:"duration_ms" gorm:"not null"` // milliseconds
	CreatedAt  time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName returns the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
