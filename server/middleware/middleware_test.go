package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/models/notification"
	"desktown-backend/shared/session"
	utils "desktown-backend/shared/utils/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func testConfig() *config.Config {
	return &config.Config{
		SessionSecret:     "test-secret",
		SessionCookieName: "desktown.sid",
		SessionTTLHours:   1,
	}
}

func newStore(t *testing.T) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return session.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func whoAmI(c *gin.Context) {
	user, _ := CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"id": user.ID})
}

func TestRequireRole(t *testing.T) {
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin, IsActive: true}
	member := &models.User{ID: uuid.New(), Role: models.RoleMember, IsActive: true}

	tests := []struct {
		name string
		user *models.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"member", member, http.StatusForbidden},
		{"admin", admin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/admin", func(c *gin.Context) {
				if tt.user != nil {
					SetUser(c, tt.user)
				}
				c.Next()
			}, RequireRole(models.RoleAdmin, models.RoleSuperAdmin), whoAmI)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestSessionAuth(t *testing.T) {
	cfg := testConfig()
	store, _ := newStore(t)
	active := &models.User{ID: uuid.New(), Role: models.RoleMember, IsActive: true}
	disabled := &models.User{ID: uuid.New(), Role: models.RoleMember, IsActive: false}
	users := fakeUsers{active.ID: active, disabled.ID: disabled}

	ctx := context.Background()
	activeSID, err := store.CreateSession(ctx, session.Data{UserID: active.ID.String(), Role: active.Role}, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	disabledSID, err := store.CreateSession(ctx, session.Data{UserID: disabled.ID.String(), Role: disabled.Role}, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	r := gin.New()
	r.GET("/me", SessionAuth(store, users, cfg), whoAmI)

	tests := []struct {
		name   string
		cookie string
		want   int
	}{
		{"no cookie", "", http.StatusUnauthorized},
		{"unknown session", "deadbeef", http.StatusUnauthorized},
		{"deactivated user", disabledSID, http.StatusUnauthorized},
		{"valid session", activeSID, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cfg.SessionCookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestOptionalSessionNeverAborts(t *testing.T) {
	cfg := testConfig()
	store, _ := newStore(t)

	r := gin.New()
	r.GET("/feed", OptionalSession(store, fakeUsers{}, cfg), func(c *gin.Context) {
		_, ok := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.AddCookie(&http.Cookie{Name: cfg.SessionCookieName, Value: "missing"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != `{"authenticated":false}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestEmployeeAuthRejectsRevokedToken(t *testing.T) {
	cfg := testConfig()
	config.SetConfig(cfg)
	t.Cleanup(func() { config.SetConfig(nil) })

	store, _ := newStore(t)
	user := &models.User{ID: uuid.New(), Email: "e@desktown.app", Role: models.RoleManager, IsActive: true}
	users := fakeUsers{user.ID: user}

	token, jti, err := utils.GenerateEmployeeToken(user.ID, user.Email, user.Role, time.Hour)
	if err != nil {
		t.Fatalf("GenerateEmployeeToken: %v", err)
	}
	ctx := context.Background()
	if err := store.SaveEmployeeToken(ctx, jti, user.ID.String(), time.Hour); err != nil {
		t.Fatalf("SaveEmployeeToken: %v", err)
	}

	r := gin.New()
	r.GET("/employee/me", EmployeeAuth(store, users), whoAmI)

	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/employee/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := call(); code != http.StatusOK {
		t.Fatalf("live token: status = %d", code)
	}
	if err := store.RevokeEmployeeToken(ctx, jti); err != nil {
		t.Fatalf("RevokeEmployeeToken: %v", err)
	}
	if code := call(); code != http.StatusUnauthorized {
		t.Errorf("revoked token: status = %d, want 401", code)
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := ExtractTokenFromHeader(req); got != want {
			t.Errorf("ExtractTokenFromHeader(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestLoginRateLimitBlocksAfterMax(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := NewRateLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	limits := RateLimitConfig{MaxRequests: 3, TimeWindow: time.Minute, BlockDuration: 10 * time.Minute}

	r := gin.New()
	r.POST("/login", limiter.LoginRateLimitMiddleware(limits), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	hit := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		if code := hit(); code != http.StatusNoContent {
			t.Fatalf("attempt %d: status = %d", i+1, code)
		}
	}
	if code := hit(); code != http.StatusTooManyRequests {
		t.Fatalf("attempt 4: status = %d, want 429", code)
	}
	if !mr.Exists("ratelimit:block:login:10.0.0.1") {
		t.Error("expected block key")
	}

	// the block outlives the counter window
	mr.FastForward(2 * time.Minute)
	if code := hit(); code != http.StatusTooManyRequests {
		t.Errorf("during block: status = %d, want 429", code)
	}

	mr.FastForward(10 * time.Minute)
	if code := hit(); code != http.StatusNoContent {
		t.Errorf("after block: status = %d", code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := NewRateLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	r := gin.New()
	r.GET("/", limiter.RateLimitMiddleware(RateLimitConfig{MaxRequests: 1, TimeWindow: time.Minute}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 while redis is down", w.Code)
		}
	}
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []*notification.AuditLog
	done    chan struct{}
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, entry *notification.AuditLog) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	writer := &recordingAudit{done: make(chan struct{}, 4)}
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin, IsActive: true}

	r := gin.New()
	r.Use(func(c *gin.Context) { SetUser(c, admin); c.Next() }, AuditTrail(writer))
	r.GET("/admin/users", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PATCH("/admin/users/:id/role", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/admin/users/42/role", nil))

	select {
	case <-writer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry was not written")
	}

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if len(writer.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(writer.entries))
	}
	e := writer.entries[0]
	if e.Action != "PATCH /admin/users/:id/role" || e.Path != "/admin/users/42/role" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.UserID == nil || *e.UserID != admin.ID {
		t.Errorf("user id = %v", e.UserID)
	}
	if e.Details["id"] != "42" {
		t.Errorf("details = %v", e.Details)
	}
}
