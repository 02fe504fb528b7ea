package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), redis.NewClient(&redis.Options{Addr: s.Addr()}))
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, s
}

func TestCreateAndGetSession(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, Data{UserID: "user-1", Role: "member"}, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if len(id) != 64 {
		t.Errorf("expected 64 hex chars session id, got %d", len(id))
	}
	if !s.Exists("session:" + id) {
		t.Error("expected session key in redis")
	}

	data, err := store.GetSession(ctx, id, 0)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if data.UserID != "user-1" || data.Role != "member" {
		t.Errorf("unexpected session data: %+v", data)
	}
	if data.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestSessionExpires(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, Data{UserID: "user-1"}, time.Minute)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, err := store.GetSession(ctx, id, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after ttl, got %v", err)
	}
}

func TestGetSessionSlidesTTL(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, Data{UserID: "user-1"}, 10*time.Minute)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	s.FastForward(8 * time.Minute)
	if _, err := store.GetSession(ctx, id, 10*time.Minute); err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	s.FastForward(8 * time.Minute)
	if _, err := store.GetSession(ctx, id, 10*time.Minute); err != nil {
		t.Errorf("expected session to survive after sliding ttl, got %v", err)
	}

	if ttl := s.TTL("session:" + id); ttl != 10*time.Minute {
		t.Errorf("expected ttl reset to 10m, got %v", ttl)
	}
}

func TestDeleteSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	id, _ := store.CreateSession(ctx, Data{UserID: "user-1"}, time.Hour)
	if err := store.DeleteSession(ctx, id); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.GetSession(ctx, id, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := store.DeleteSession(ctx, "missing"); err != nil {
		t.Errorf("deleting unknown session should not error: %v", err)
	}
}

func TestGetSessionEmptyID(t *testing.T) {
	store, _ := setupTestRedis(t)

	if _, err := store.GetSession(context.Background(), "", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty id, got %v", err)
	}
}

func TestEmployeeTokenLifecycle(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.SaveEmployeeToken(ctx, "jti-1", "user-7", time.Hour); err != nil {
		t.Fatalf("SaveEmployeeToken failed: %v", err)
	}

	userID, err := store.LookupEmployeeToken(ctx, "jti-1")
	if err != nil {
		t.Fatalf("LookupEmployeeToken failed: %v", err)
	}
	if userID != "user-7" {
		t.Errorf("expected user-7, got %s", userID)
	}

	if err := store.RevokeEmployeeToken(ctx, "jti-1"); err != nil {
		t.Fatalf("RevokeEmployeeToken failed: %v", err)
	}
	if _, err := store.LookupEmployeeToken(ctx, "jti-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}

	if err := store.SaveEmployeeToken(ctx, "jti-2", "user-7", time.Minute); err != nil {
		t.Fatalf("SaveEmployeeToken failed: %v", err)
	}
	s.FastForward(61 * time.Second)
	if _, err := store.LookupEmployeeToken(ctx, "jti-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after token ttl, got %v", err)
	}
}

func TestRevokeUser(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	a, _ := store.CreateSession(ctx, Data{UserID: "user-1"}, time.Hour)
	b, _ := store.CreateSession(ctx, Data{UserID: "user-1"}, time.Hour)
	other, _ := store.CreateSession(ctx, Data{UserID: "user-2"}, time.Hour)
	if err := store.SaveEmployeeToken(ctx, "jti-1", "user-1", time.Hour); err != nil {
		t.Fatalf("SaveEmployeeToken failed: %v", err)
	}

	removed, err := store.RevokeUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("RevokeUser failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed entries, got %d", removed)
	}

	for _, id := range []string{a, b} {
		if _, err := store.GetSession(ctx, id, 0); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected session %s revoked, got %v", id, err)
		}
	}
	if _, err := store.LookupEmployeeToken(ctx, "jti-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected employee token revoked, got %v", err)
	}
	if _, err := store.GetSession(ctx, other, 0); err != nil {
		t.Errorf("expected other user's session untouched, got %v", err)
	}
}

func TestUserIndexOutlivesShortTokens(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if _, err := store.CreateSession(ctx, Data{UserID: "user-1"}, 48*time.Hour); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.SaveEmployeeToken(ctx, "jti-1", "user-1", time.Hour); err != nil {
		t.Fatalf("SaveEmployeeToken failed: %v", err)
	}

	if ttl := s.TTL("user_sessions:user-1"); ttl != 48*time.Hour {
		t.Errorf("expected index ttl 48h, got %v", ttl)
	}
}

func TestRevokeUserAfterSlidingRefresh(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, Data{UserID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		s.FastForward(50 * time.Minute)
		if _, err := store.GetSession(ctx, id, time.Hour); err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
	}
	if ttl := s.TTL("user_sessions:user-1"); ttl < time.Hour {
		t.Errorf("expected index ttl of at least 1h, got %v", ttl)
	}

	removed, err := store.RevokeUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("RevokeUser failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed entry, got %d", removed)
	}
	if _, err := store.GetSession(ctx, id, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected session revoked, got %v", err)
	}
}
