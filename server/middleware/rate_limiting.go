package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"desktown-backend/shared/config"
)

const (
	rateLimitPrefix = "ratelimit:"
	rateBlockPrefix = "ratelimit:block:"
)

// RateLimitConfig - fixed window with a block once the window is exhausted
type RateLimitConfig struct {
	MaxRequests   int
	TimeWindow    time.Duration
	BlockDuration time.Duration
}

// RateLimiter keeps counters in Redis so every server instance shares them.
// Counters and blocks expire through key TTLs.
type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// LoginLimits reads LOGIN_RATE_LIMIT_* settings
func LoginLimits(cfg *config.Config) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:   cfg.LoginRateLimitMaxAttempts,
		TimeWindow:    time.Duration(cfg.LoginRateLimitWindowSeconds) * time.Second,
		BlockDuration: time.Duration(cfg.LoginRateLimitBlockMinutes) * time.Minute,
	}
}

// RegisterLimits reads REGISTER_RATE_LIMIT_* settings
func RegisterLimits(cfg *config.Config) RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:   cfg.RegisterRateLimitMaxAttempts,
		TimeWindow:    time.Duration(cfg.RegisterRateLimitWindowHours) * time.Hour,
		BlockDuration: time.Duration(cfg.RegisterRateLimitBlockHours) * time.Hour,
	}
}

// isAllowed counts one hit for key. Redis errors fail open.
func (rl *RateLimiter) isAllowed(ctx context.Context, key string, cfg RateLimitConfig) bool {
	blocked, err := rl.client.Exists(ctx, rateBlockPrefix+key).Result()
	if err != nil {
		log.Printf("⚠️  rate limiter unavailable: %v", err)
		return true
	}
	if blocked > 0 {
		return false
	}

	counterKey := rateLimitPrefix + key
	count, err := rl.client.Incr(ctx, counterKey).Result()
	if err != nil {
		log.Printf("⚠️  rate limiter unavailable: %v", err)
		return true
	}
	if count == 1 {
		rl.client.Expire(ctx, counterKey, cfg.TimeWindow)
	}

	if count > int64(cfg.MaxRequests) {
		if err := rl.client.Set(ctx, rateBlockPrefix+key, 1, cfg.BlockDuration).Err(); err != nil {
			log.Printf("⚠️  rate limiter could not set block: %v", err)
		}
		rl.client.Del(ctx, counterKey)
		return false
	}
	return true
}

func (rl *RateLimiter) limit(scope string, cfg RateLimitConfig, title, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", scope, c.ClientIP())

		if !rl.isAllowed(c.Request.Context(), key, cfg) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   title,
				"message": message,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware - General rate limiting middleware
func (rl *RateLimiter) RateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit("general", cfg, "Too many requests", "Rate limit exceeded. Please try again later.")
}

// LoginRateLimitMiddleware - Login endpoint rate limiting middleware
func (rl *RateLimiter) LoginRateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit("login", cfg, "Too many login attempts", "Too many login attempts. Please try again later.")
}

// EmployeeLoginRateLimitMiddleware - employee portal login shares the login limits under its own counter
func (rl *RateLimiter) EmployeeLoginRateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit("employee-login", cfg, "Too many login attempts", "Too many login attempts. Please try again later.")
}

// RegistrationRateLimitMiddleware - Registration endpoint rate limiting middleware
func (rl *RateLimiter) RegistrationRateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	return rl.limit("register", cfg, "Too many registration attempts", "Too many registration attempts. Please try again later.")
}
