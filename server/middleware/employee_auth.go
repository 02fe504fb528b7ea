package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	utils "desktown-backend/shared/utils/auth"
)

// TokenRegistry reports whether an employee token id is still live
type TokenRegistry interface {
	LookupEmployeeToken(ctx context.Context, jti string) (string, error)
}

// EmployeeAuth validates the bearer JWT and requires its jti to still exist in Redis, so logout revokes it
func EmployeeAuth(tokens TokenRegistry, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractTokenFromHeader(c.Request)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Authorization header with Bearer token is required",
			})
			c.Abort()
			return
		}

		claims, err := utils.ValidateEmployeeToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Invalid or expired token"})
			c.Abort()
			return
		}

		owner, err := tokens.LookupEmployeeToken(c.Request.Context(), claims.ID)
		if err != nil || owner != claims.UserID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Token has been revoked"})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Invalid user ID in token"})
			c.Abort()
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "Account is not active"})
			c.Abort()
			return
		}

		SetUser(c, user)
		c.Set(ContextEmployeeJTI, claims.ID)
		c.Next()
	}
}

// ExtractTokenFromHeader returns the token from "Authorization: Bearer <token>"
func ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	tokenParts := strings.SplitN(authHeader, " ", 2)
	if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(tokenParts[1])
}
