package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/session"
)

// SessionReader is the read side of the Redis session store
type SessionReader interface {
	GetSession(ctx context.Context, id string, ttl time.Duration) (*session.Data, error)
}

var errNoSession = errors.New("no session")

func resolveSession(c *gin.Context, sessions SessionReader, users UserLoader, cfg *config.Config) (*models.User, string, error) {
	sid, err := c.Cookie(cfg.SessionCookieName)
	if err != nil || sid == "" {
		return nil, "", errNoSession
	}

	data, err := sessions.GetSession(c.Request.Context(), sid, cfg.SessionTTL())
	if err != nil {
		return nil, "", err
	}

	userID, err := uuid.Parse(data.UserID)
	if err != nil {
		return nil, "", err
	}

	user, err := users.GetUser(c.Request.Context(), userID)
	if err != nil {
		return nil, "", err
	}
	if !user.IsActive {
		return nil, "", errNoSession
	}
	return user, sid, nil
}

// SessionAuth requires a valid session cookie. Each hit slides the session TTL.
func SessionAuth(sessions SessionReader, users UserLoader, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, sid, err := resolveSession(c, sessions, users, cfg)
		if err != nil {
			if !errors.Is(err, errNoSession) && !errors.Is(err, session.ErrNotFound) {
				log.Printf("⚠️  session lookup failed: %v", err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Not authenticated",
			})
			c.Abort()
			return
		}

		SetUser(c, user)
		c.Set(ContextSessionID, sid)
		c.Next()
	}
}

// OptionalSession attaches the user when a valid cookie is present and never aborts
func OptionalSession(sessions SessionReader, users UserLoader, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, sid, err := resolveSession(c, sessions, users, cfg); err == nil {
			SetUser(c, user)
			c.Set(ContextSessionID, sid)
		}
		c.Next()
	}
}
