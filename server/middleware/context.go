package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"desktown-backend/shared/database/models"
)

// Context keys set by the auth middlewares
const (
	ContextUser        = "user"
	ContextUserID      = "user_id"
	ContextSessionID   = "session_id"
	ContextEmployeeJTI = "employee_jti"
)

// UserLoader resolves the authenticated user on every request so role and
// deactivation changes apply immediately
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CurrentUser returns the user placed in the context by SessionAuth or EmployeeAuth
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// SetUser stores user in the request context
func SetUser(c *gin.Context, user *models.User) {
	c.Set(ContextUser, user)
	c.Set(ContextUserID, user.ID)
}
