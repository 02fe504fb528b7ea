package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"desktown-backend/server/middleware"
	"desktown-backend/shared/clients"
	"desktown-backend/server/services"
	"desktown-backend/shared/config"
	"desktown-backend/shared/database"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/search"
	"desktown-backend/shared/utils/webhook"
)

const testSecret = "whsec_test"

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		SessionCookieName:       "desktown.sid",
		SessionTTLHours:         1,
		StatusTTLHours:          24,
		UploadMaxBytes:          1 << 20,
		DefaultCurrency:         "usd",
		PaymentWebhookSecret:    testSecret,
		PaymentCheckoutURL:      "http://localhost/checkout",
		AutomationWebhookSecret: testSecret,
		PublicAPIURL:            "https://api.desktown.test/",
	}
}

// asUser injects user the way SessionAuth would
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			middleware.SetUser(c, user)
		}
		c.Next()
	}
}

func perform(r http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTransactionsRequireAdmin(t *testing.T) {
	h := NewHandler(Dependencies{Config: testConfig()})

	tests := []struct {
		name string
		user *models.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"member", &models.User{ID: uuid.New(), Role: models.RoleMember}, http.StatusForbidden},
		{"office renter", &models.User{ID: uuid.New(), Role: models.RoleOfficeRenter}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/transactions", asUser(tt.user), middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin), h.ListTransactions)
			w := perform(r, http.MethodGet, "/transactions", nil, nil)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestPaymentWebhookSignatureHandling(t *testing.T) {
	cfg := testConfig()
	h := NewHandler(Dependencies{
		Config:   cfg,
		Payments: services.NewPaymentService(nil, nil, nil, cfg),
	})
	r := gin.New()
	r.POST("/webhooks/payments", h.PaymentWebhook)

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"session_id":"cs_1"}}`)

	w := perform(r, http.MethodPost, "/webhooks/payments", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned: status = %d, want 401", w.Code)
	}

	forged := webhook.Sign([]byte("other"), body, time.Now())
	w = perform(r, http.MethodPost, "/webhooks/payments", body, map[string]string{webhook.SignatureHeader: forged})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("forged: status = %d, want 401", w.Code)
	}

	stale := webhook.Sign([]byte(testSecret), body, time.Now().Add(-time.Hour))
	w = perform(r, http.MethodPost, "/webhooks/payments", body, map[string]string{webhook.SignatureHeader: stale})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("stale: status = %d, want 401", w.Code)
	}

	garbage := []byte(`{not json`)
	signed := webhook.Sign([]byte(testSecret), garbage, time.Now())
	w = perform(r, http.MethodPost, "/webhooks/payments", garbage, map[string]string{webhook.SignatureHeader: signed})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed: status = %d, want 400", w.Code)
	}
}

func TestSignedAutomationRoutesRejectUnsigned(t *testing.T) {
	h := NewHandler(Dependencies{Config: testConfig()})
	r := gin.New()
	r.POST("/automations/callback", h.AutomationCallback)
	r.POST("/automations/internal-email", h.InboundEmail)

	for _, path := range []string{"/automations/callback", "/automations/internal-email"} {
		w := perform(r, http.MethodPost, path, []byte(`{"task_id":1,"status":"completed"}`), nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, w.Code)
		}
	}
}

func TestAutomationCallbackRejectsUnknownStatus(t *testing.T) {
	h := NewHandler(Dependencies{Config: testConfig()})
	r := gin.New()
	r.POST("/automations/callback", h.AutomationCallback)

	body := []byte(`{"task_id":7,"status":"exploded"}`)
	sig := webhook.Sign([]byte(testSecret), body, time.Now())
	w := perform(r, http.MethodPost, "/automations/callback", body, map[string]string{webhook.SignatureHeader: sig})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestStorageErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", storage.ErrConflict), http.StatusConflict},
		{storage.ErrInvalidTransition, http.StatusConflict},
		{storage.ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		storageError(c, tt.err, "Task")
		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestTaskFilterFor(t *testing.T) {
	member := &models.User{ID: uuid.New(), Role: models.RoleMember}
	manager := &models.User{ID: uuid.New(), Role: models.RoleManager}
	other := uuid.New()

	filterFor := func(user *models.User, target string) (storage.TaskFilter, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		return taskFilterFor(c, user)
	}

	f, err := filterFor(member, "/tasks?assignee=me&status=pending")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.AssigneeID == nil || *f.AssigneeID != member.ID {
		t.Errorf("assignee=me should resolve to the caller")
	}
	if f.Involving == nil || *f.Involving != member.ID {
		t.Errorf("members must be scoped to their own tasks")
	}

	f, err = filterFor(manager, "/tasks?creator="+other.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Involving != nil {
		t.Errorf("managers see every task")
	}
	if f.CreatorID == nil || *f.CreatorID != other {
		t.Errorf("creator = %v, want %s", f.CreatorID, other)
	}

	if _, err := filterFor(member, "/tasks?assignee=nobody"); err == nil {
		t.Errorf("expected error for a malformed assignee")
	}
	if _, err := filterFor(member, "/tasks?status=archived"); err == nil {
		t.Errorf("expected error for an unknown status")
	}
}

func TestUploadWithoutObjectStorage(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: models.RoleMember}
	h := NewHandler(Dependencies{Config: testConfig()})
	r := gin.New()
	r.POST("/upload/media", asUser(user), h.UploadMedia)
	r.GET("/objects/*path", h.GetObject)

	w := perform(r, http.MethodPost, "/upload/media", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("upload status = %d, want 503", w.Code)
	}
	w = perform(r, http.MethodGet, "/objects/public/x.png", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("download status = %d, want 503", w.Code)
	}
}

func TestUploadHelpers(t *testing.T) {
	kinds := map[string]string{
		"image/png":       "image",
		"video/mp4":       "video",
		"application/pdf": "file",
	}
	for ct, want := range kinds {
		if got := mediaKind(ct); got != want {
			t.Errorf("mediaKind(%q) = %q, want %q", ct, got, want)
		}
	}
	if !uploadAllowed("image/jpeg") || !uploadAllowed("application/pdf") {
		t.Errorf("images and pdfs should be accepted")
	}
	if uploadAllowed("application/x-msdownload") {
		t.Errorf("executables should be rejected")
	}
	if got := objectURL("public/a/b.png"); got != "/api/objects/public/a/b.png" {
		t.Errorf("objectURL = %q", got)
	}
}

func TestCreateOfficeValidatesName(t *testing.T) {
	renter := &models.User{ID: uuid.New(), Role: models.RoleOfficeRenter}
	h := NewHandler(Dependencies{Config: testConfig()})
	r := gin.New()
	r.POST("/offices", asUser(renter), h.CreateOffice)

	for _, name := range []string{" x ", strings.Repeat("a", 201)} {
		body, _ := json.Marshal(map[string]string{"name": name})
		w := perform(r, http.MethodPost, "/offices", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("name of %d chars: status = %d, want 400", len(name), w.Code)
		}
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	h := NewHandler(Dependencies{Config: testConfig()})
	r := gin.New()
	r.GET("/search", h.Search)

	w := perform(r, http.MethodGet, "/search?q=%20", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestVAPIDKeyDisabled(t *testing.T) {
	h := NewHandler(Dependencies{Config: testConfig()})
	r := gin.New()
	r.GET("/push/vapid-public-key", h.VAPIDPublicKey)

	w := perform(r, http.MethodGet, "/push/vapid-public-key", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

// openTestHandler connects to DESKTOWN_TEST_DATABASE_URL, migrates and empties every table
func openTestHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()

	dsn := os.Getenv("DESKTOWN_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DESKTOWN_TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var tables []string
	for _, model := range database.AllModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			t.Fatalf("parse %T: %v", model, err)
		}
		tables = append(tables, stmt.Schema.Table)
	}
	if err := db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cfg := testConfig()
	store := storage.New(db)
	sockets := services.NewWebSocketManager()
	notifier := services.NewNotifier(store, sockets, cfg)
	h := NewHandler(Dependencies{
		Store:    store,
		Sockets:  sockets,
		Notifier: notifier,
		Payments: services.NewPaymentService(store, notifier, services.NewEmailService(cfg), cfg),
		Search:   search.NewService(nil, search.NewSQL(db)),
		Mailer:   services.NewEmailService(cfg),
		Config:   cfg,
	})
	return h, store
}

func seedUser(t *testing.T, s *storage.Storage, name, role string) *models.User {
	t.Helper()
	user := &models.User{
		Email:     name + "@desktown.test",
		Username:  name,
		Password:  "x",
		FirstName: name,
		Role:      role,
		IsActive:  true,
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func TestCreateTaskReturnsCreated(t *testing.T) {
	h, store := openTestHandler(t)
	creator := seedUser(t, store, "creator", models.RoleMember)
	assignee := seedUser(t, store, "assignee", models.RoleMember)

	r := gin.New()
	r.POST("/tasks", asUser(creator), h.CreateTask)

	body, _ := json.Marshal(map[string]interface{}{
		"title":       "Prepare quarterly report",
		"assignee_id": assignee.ID,
	})
	w := perform(r, http.MethodPost, "/tasks", body, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	count, err := store.NotificationUnreadCount(context.Background(), assignee.ID)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Errorf("assignee notifications = %d, want 1", count)
	}
}

func TestTransactionsListedForAdmin(t *testing.T) {
	h, store := openTestHandler(t)
	admin := seedUser(t, store, "root", models.RoleAdmin)

	r := gin.New()
	r.GET("/transactions", asUser(admin), middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin), h.ListTransactions)

	w := perform(r, http.MethodGet, "/transactions", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Items []models.ServiceOrder `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Data.Items) != 0 {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestOrderCheckoutAndWebhookOverHTTP(t *testing.T) {
	h, store := openTestHandler(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", models.RoleOfficeRenter)
	buyer := seedUser(t, store, "buyer", models.RoleMember)

	office := &models.Office{OwnerID: owner.ID, Name: "Studio", Slug: "studio", IsPublished: true}
	if err := store.CreateOffice(ctx, office); err != nil {
		t.Fatalf("create office: %v", err)
	}
	svc := &models.OfficeService{OfficeID: office.ID, Name: "Logo design", PriceCents: 5000, Currency: "usd", ShareToken: "tok-logo", IsActive: true}
	if err := store.CreateService(ctx, svc); err != nil {
		t.Fatalf("create service: %v", err)
	}

	r := gin.New()
	r.POST("/services/:id/orders", asUser(buyer), h.CreateOrder)
	r.POST("/orders/:id/checkout", asUser(buyer), h.StartCheckout)
	r.POST("/webhooks/payments", h.PaymentWebhook)
	r.GET("/offices/:id/orders", asUser(buyer), h.ListOfficeOrders)

	w := perform(r, http.MethodPost, fmt.Sprintf("/services/%d/orders", svc.ID), nil, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create order: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		Data models.ServiceOrder `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)

	w = perform(r, http.MethodPost, "/orders/"+created.Data.ID.String()+"/checkout", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("checkout: %d %s", w.Code, w.Body.String())
	}
	var checkout struct {
		Data services.CheckoutSession `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &checkout)

	event := []byte(fmt.Sprintf(`{"id":"evt_http","type":"checkout.session.completed","data":{"session_id":%q}}`, checkout.Data.SessionID))
	sig := map[string]string{webhook.SignatureHeader: webhook.Sign([]byte(testSecret), event, time.Now())}

	outcomes := []string{}
	for i := 0; i < 2; i++ {
		w = perform(r, http.MethodPost, "/webhooks/payments", event, sig)
		if w.Code != http.StatusOK {
			t.Fatalf("webhook %d: %d %s", i, w.Code, w.Body.String())
		}
		var res struct {
			Data services.WebhookResult `json:"data"`
		}
		json.Unmarshal(w.Body.Bytes(), &res)
		outcomes = append(outcomes, res.Data.Outcome)
	}
	if outcomes[0] != services.OutcomeApplied || outcomes[1] != services.OutcomeDuplicate {
		t.Fatalf("outcomes = %v", outcomes)
	}

	order, err := store.GetOrder(ctx, created.Data.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != models.OrderPaid {
		t.Errorf("status = %s, want paid", order.Status)
	}

	// the buyer does not manage the office
	w = perform(r, http.MethodGet, "/offices/"+office.ID.String()+"/orders", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("office orders as buyer: %d, want 403", w.Code)
	}
}

func TestPublicURLIgnoresRequestHost(t *testing.T) {
	h := NewHandler(Dependencies{Config: testConfig()})
	if got := h.publicURL("/api/automations/callback"); got != "https://api.desktown.test/api/automations/callback" {
		t.Fatalf("publicURL = %q", got)
	}
}

func TestAutomateTaskKeepsEarlyCallback(t *testing.T) {
	h, store := openTestHandler(t)
	creator := seedUser(t, store, "creator", models.RoleMember)

	task := &models.Task{Title: "Sync calendar", CreatorID: creator.ID}
	if err := store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	r := gin.New()
	r.POST("/tasks/:id/automate", asUser(creator), h.AutomateTask)
	r.POST("/automations/callback", h.AutomationCallback)

	callbackURLs := make(chan string, 1)
	workflow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var in clients.TaskAutomationRequest
		json.NewDecoder(req.Body).Decode(&in)
		callbackURLs <- in.CallbackURL

		// finish the run before answering the relay
		body := []byte(fmt.Sprintf(`{"event_id":"run-1","task_id":%d,"status":"completed","result":{"ok":true}}`, in.TaskID))
		sig := map[string]string{webhook.SignatureHeader: webhook.Sign([]byte(testSecret), body, time.Now())}
		if cb := perform(r, http.MethodPost, "/automations/callback", body, sig); cb.Code != http.StatusOK {
			t.Errorf("callback: %d %s", cb.Code, cb.Body.String())
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer workflow.Close()
	h.automation = clients.NewAutomationClientWith(workflow.URL, testSecret, workflow.Client())

	w := perform(r, http.MethodPost, fmt.Sprintf("/tasks/%d/automate", task.ID), nil, map[string]string{
		"X-Forwarded-Proto": "gopher",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("automate: %d %s", w.Code, w.Body.String())
	}
	if got := <-callbackURLs; got != "https://api.desktown.test/api/automations/callback" {
		t.Errorf("callback url = %q", got)
	}

	got, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.AutomationStatus != models.AutomationCompleted {
		t.Fatalf("automation status = %q, want completed", got.AutomationStatus)
	}
}

func TestAutomateTaskMarksFailedWhenRelayFails(t *testing.T) {
	h, store := openTestHandler(t)
	creator := seedUser(t, store, "creator", models.RoleMember)

	task := &models.Task{Title: "Sync calendar", CreatorID: creator.ID}
	if err := store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	workflow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer workflow.Close()
	h.automation = clients.NewAutomationClientWith(workflow.URL, testSecret, workflow.Client())

	r := gin.New()
	r.POST("/tasks/:id/automate", asUser(creator), h.AutomateTask)

	w := perform(r, http.MethodPost, fmt.Sprintf("/tasks/%d/automate", task.ID), nil, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("automate: %d %s", w.Code, w.Body.String())
	}
	got, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.AutomationStatus != models.AutomationFailed {
		t.Fatalf("automation status = %q, want failed", got.AutomationStatus)
	}
}
