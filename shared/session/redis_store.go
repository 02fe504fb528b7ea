// Package session keeps cookie sessions and employee tokens in Redis.
// Entries expire through Redis TTLs; nothing sweeps them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"desktown-backend/shared/config"
	utils "desktown-backend/shared/utils/auth"
)

var ErrNotFound = errors.New("session not found or expired")

const (
	sessionPrefix  = "session:"
	employeePrefix = "employee:"
	userIndexKey   = "user_sessions:"
)

// Data is what a cookie session id resolves to
type Data struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore implements session and employee token storage using Redis
type RedisStore struct {
	client *redis.Client
}

// NewClient builds a Redis client from REDIS_URL, or from the host/port settings when unset
func NewClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}

	redisDB, err := strconv.Atoi(cfg.RedisDB)
	if err != nil {
		log.Printf("❌ Invalid Redis DB number: %s, using default 0", cfg.RedisDB)
		redisDB = 0
	}

	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       redisDB,
	}), nil
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client without pinging it
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client exposes the underlying connection for other Redis-backed helpers
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// CreateSession stores data under a new random id for ttl
func (s *RedisStore) CreateSession(ctx context.Context, data Data, ttl time.Duration) (string, error) {
	id, err := utils.GenerateSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionPrefix+id, payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if err := s.track(ctx, data.UserID, sessionPrefix+id, ttl); err != nil {
		return "", err
	}

	return id, nil
}

// GetSession resolves id. A positive ttl slides the expiry forward.
func (s *RedisStore) GetSession(ctx context.Context, id string, ttl time.Duration) (*Data, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	raw, err := s.client.Get(ctx, sessionPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	if ttl > 0 {
		if err := s.client.Expire(ctx, sessionPrefix+id, ttl).Err(); err != nil {
			return nil, fmt.Errorf("refresh session ttl: %w", err)
		}
		if err := s.extendIndex(ctx, data.UserID, ttl); err != nil {
			return nil, err
		}
	}

	return &data, nil
}

// DeleteSession removes a session; deleting an unknown id is not an error
func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SaveEmployeeToken registers a token id; the token is only honoured while this key lives
func (s *RedisStore) SaveEmployeeToken(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, employeePrefix+jti, userID, ttl).Err(); err != nil {
		return fmt.Errorf("save employee token: %w", err)
	}
	return s.track(ctx, userID, employeePrefix+jti, ttl)
}

// LookupEmployeeToken returns the user id registered for jti
func (s *RedisStore) LookupEmployeeToken(ctx context.Context, jti string) (string, error) {
	userID, err := s.client.Get(ctx, employeePrefix+jti).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup employee token: %w", err)
	}
	return userID, nil
}

func (s *RedisStore) RevokeEmployeeToken(ctx context.Context, jti string) error {
	if err := s.client.Del(ctx, employeePrefix+jti).Err(); err != nil {
		return fmt.Errorf("revoke employee token: %w", err)
	}
	return nil
}

// track adds key to the user's index. The index never expires before its longest-lived member.
func (s *RedisStore) track(ctx context.Context, userID, key string, ttl time.Duration) error {
	if err := s.client.SAdd(ctx, userIndexKey+userID, key).Err(); err != nil {
		return fmt.Errorf("index user session: %w", err)
	}
	return s.extendIndex(ctx, userID, ttl)
}

// extendIndex keeps the user's index alive for at least ttl
func (s *RedisStore) extendIndex(ctx context.Context, userID string, ttl time.Duration) error {
	index := userIndexKey + userID
	current, err := s.client.TTL(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("read index ttl: %w", err)
	}
	if current < ttl {
		if err := s.client.Expire(ctx, index, ttl).Err(); err != nil {
			return fmt.Errorf("extend index ttl: %w", err)
		}
	}
	return nil
}

// RevokeUser drops every session and employee token issued to userID
func (s *RedisStore) RevokeUser(ctx context.Context, userID string) (int64, error) {
	keys, err := s.client.SMembers(ctx, userIndexKey+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	keys = append(keys, userIndexKey+userID)
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}

	// the index key itself is not a session
	if removed > 0 {
		removed--
	}
	return removed, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
