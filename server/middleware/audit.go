package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"desktown-backend/shared/database/models/notification"
)

// AuditWriter persists audit entries
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, entry *notification.AuditLog) error
}

// AuditTrail records every non-GET request on the group after the handler ran.
// The write happens in the background; failures are logged.
func AuditTrail(writer AuditWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		entry := &notification.AuditLog{
			Action:     c.Request.Method + " " + c.FullPath(),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			StatusCode: c.Writer.Status(),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Duration:   time.Since(start).Milliseconds(),
		}
		if user, ok := CurrentUser(c); ok {
			id := user.ID
			entry.UserID = &id
		}
		details := datatypes.JSONMap{}
		for _, p := range c.Params {
			details[p.Key] = p.Value
		}
		if len(details) > 0 {
			entry.Details = details
		}

		go saveAuditLog(writer, entry)
	}
}

func saveAuditLog(writer AuditWriter, entry *notification.AuditLog) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Audit log failed: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := writer.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("❌ Failed to save audit log %s %s: %v", entry.Method, entry.Path, err)
	}
}
