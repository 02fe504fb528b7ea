package storage_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"desktown-backend/shared/database"
	"desktown-backend/shared/database/models"
	"desktown-backend/shared/database/storage"
	"desktown-backend/shared/utils/query"
)

// openTestStorage connects to DESKTOWN_TEST_DATABASE_URL, migrates and empties every table.
// Tests that need it are skipped when the variable is unset.
func openTestStorage(t *testing.T) *storage.Storage {
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
	return storage.New(db)
}

func createUser(t *testing.T, s *storage.Storage, name, role string) *models.User {
	t.Helper()
	user := &models.User{
		Email:     name + "@desktown.test",
		Username:  name,
		Password:  "x",
		FirstName: name,
		Role:      role,
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func TestBuildDepartmentTree(t *testing.T) {
	root := uint(1)
	child := uint(2)
	flat := []models.OfficeDepartment{
		{ID: 3, Name: "Design", ParentID: &child, SortOrder: 0},
		{ID: 1, Name: "Studio", SortOrder: 0},
		{ID: 2, Name: "Creative", ParentID: &root, SortOrder: 1},
		{ID: 4, Name: "Front desk", SortOrder: 1},
		{ID: 5, Name: "Orphan", ParentID: func() *uint { v := uint(99); return &v }()},
	}

	tree := storage.BuildDepartmentTree(flat)

	if len(tree) != 3 {
		t.Fatalf("expected 3 roots (two top-level plus orphan), got %d", len(tree))
	}
	if tree[0].Name != "Studio" {
		t.Fatalf("expected Studio first, got %s", tree[0].Name)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Name != "Creative" {
		t.Fatalf("expected Creative under Studio, got %+v", tree[0].Children)
	}
	if len(tree[0].Children[0].Children) != 1 || tree[0].Children[0].Children[0].Name != "Design" {
		t.Fatal("expected Design under Creative")
	}
}

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	if storage.DirectKey(a, b) != storage.DirectKey(b, a) {
		t.Fatal("direct key must not depend on argument order")
	}
	if storage.DirectKey(a, b) == storage.DirectKey(a, uuid.New()) {
		t.Fatal("different pairs must not share a key")
	}
}

func TestCreateTaskDefaultsToPending(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	creator := createUser(t, s, "creator", models.RoleMember)

	task := &models.Task{Title: "Prepare quarterly review", CreatorID: creator.ID}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskStatusPending {
		t.Fatalf("expected status pending, got %s", got.Status)
	}
	if got.Priority != models.PriorityMedium {
		t.Fatalf("expected priority medium, got %s", got.Priority)
	}
}

func TestLateSendFailureKeepsCallbackResult(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	creator := createUser(t, s, "creator", models.RoleMember)

	task := &models.Task{Title: "Sync calendar", CreatorID: creator.ID}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := s.SetTaskAutomation(ctx, task.ID, models.AutomationQueued, nil); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if _, _, err := s.ApplyAutomationCallback(ctx, task.ID, models.AutomationCompleted, datatypes.JSON(`{"ok":true}`), ""); err != nil {
		t.Fatalf("callback: %v", err)
	}

	got, err := s.FailQueuedAutomation(ctx, task.ID)
	if err != nil {
		t.Fatalf("fail queued: %v", err)
	}
	if got.AutomationStatus != models.AutomationCompleted {
		t.Fatalf("expected completed to stick, got %q", got.AutomationStatus)
	}
}

func TestAutomationCallbackRedeliveryIsIgnored(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	creator := createUser(t, s, "creator", models.RoleMember)

	task := &models.Task{Title: "Sync calendar", CreatorID: creator.ID}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	_, duplicate, err := s.ApplyAutomationCallback(ctx, task.ID, models.AutomationCompleted, nil, "run-42")
	if err != nil || duplicate {
		t.Fatalf("first delivery: duplicate=%v err=%v", duplicate, err)
	}
	got, duplicate, err := s.ApplyAutomationCallback(ctx, task.ID, models.AutomationFailed, nil, "run-42")
	if err != nil || !duplicate {
		t.Fatalf("redelivery: duplicate=%v err=%v", duplicate, err)
	}
	if got.AutomationStatus != models.AutomationCompleted {
		t.Fatalf("redelivery must not change the result, got %q", got.AutomationStatus)
	}

	if _, _, err := s.ApplyAutomationCallback(ctx, 999999, models.AutomationCompleted, nil, "run-43"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing task, got %v", err)
	}
}

func TestCreateDraftOffice(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner", models.RoleOfficeRenter)

	draft := &models.Office{OwnerID: owner.ID, Name: "Quiet Loft", Slug: "quiet-loft"}
	if err := s.CreateOffice(ctx, draft); err != nil {
		t.Fatalf("create office: %v", err)
	}
	got, err := s.GetOffice(ctx, draft.ID)
	if err != nil {
		t.Fatalf("get office: %v", err)
	}
	if got.IsPublished {
		t.Fatal("expected draft office to stay unpublished")
	}

	clash := &models.Office{OwnerID: owner.ID, Name: "Other", Slug: "quiet-loft"}
	if err := s.CreateOffice(ctx, clash); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict for a taken slug, got %v", err)
	}
}

func TestMarkThreadReadIsIdempotent(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice", models.RoleMember)
	bob := createUser(t, s, "bob", models.RoleMember)

	thread, created, err := s.CreateThread(ctx, alice.ID, "", []uuid.UUID{bob.ID}, false)
	if err != nil || !created {
		t.Fatalf("create thread: created=%v err=%v", created, err)
	}

	for _, body := range []string{"hi", "are you there?", "ping"} {
		if err := s.SendMessage(ctx, &models.ChatMessage{ThreadID: thread.ID, SenderID: alice.ID, Body: body}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if err := s.SendMessage(ctx, &models.ChatMessage{ThreadID: thread.ID, SenderID: bob.ID, Body: "yes"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	unread, err := s.UnreadCount(ctx, thread.ID, bob.ID)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread != 3 {
		t.Fatalf("expected 3 unread for bob (own message excluded), got %d", unread)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.MarkThreadRead(ctx, thread.ID, bob.ID); err != nil {
			t.Fatalf("mark read #%d: %v", i+1, err)
		}
		unread, err = s.UnreadCount(ctx, thread.ID, bob.ID)
		if err != nil {
			t.Fatalf("unread: %v", err)
		}
		if unread != 0 {
			t.Fatalf("expected 0 unread after mark read #%d, got %d", i+1, unread)
		}
	}

	aliceUnread, err := s.UnreadCount(ctx, thread.ID, alice.ID)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if aliceUnread != 1 {
		t.Fatalf("bob reading must not change alice's count, got %d", aliceUnread)
	}

	again, created, err := s.CreateThread(ctx, bob.ID, "", []uuid.UUID{alice.ID}, false)
	if err != nil {
		t.Fatalf("recreate direct thread: %v", err)
	}
	if created || again.ID != thread.ID {
		t.Fatalf("expected existing direct thread %d, got %d (created=%v)", thread.ID, again.ID, created)
	}
}

func TestDirectThreadNotReusedAfterGroupConversion(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice", models.RoleMember)
	bob := createUser(t, s, "bob", models.RoleMember)
	carol := createUser(t, s, "carol", models.RoleMember)

	direct, _, err := s.CreateThread(ctx, alice.ID, "", []uuid.UUID{bob.ID}, false)
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	added, err := s.AddParticipant(ctx, direct.ID, carol.ID)
	if err != nil || !added {
		t.Fatalf("add participant: added=%v err=%v", added, err)
	}

	group, err := s.GetThread(ctx, direct.ID)
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}
	if !group.IsGroup || group.DirectKey != nil {
		t.Fatalf("expected group without pair key, got is_group=%v key=%v", group.IsGroup, group.DirectKey)
	}

	fresh, created, err := s.CreateThread(ctx, bob.ID, "", []uuid.UUID{alice.ID}, false)
	if err != nil {
		t.Fatalf("recreate direct thread: %v", err)
	}
	if !created || fresh.ID == direct.ID {
		t.Fatalf("expected a new direct thread, got %d (created=%v)", fresh.ID, created)
	}
	ok, err := s.IsParticipant(ctx, fresh.ID, carol.ID)
	if err != nil || ok {
		t.Fatalf("carol must not be in the new direct thread (in=%v err=%v)", ok, err)
	}
}

func TestDirectThreadNotReusedAfterMemberLeaves(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice", models.RoleMember)
	bob := createUser(t, s, "bob", models.RoleMember)

	direct, _, err := s.CreateThread(ctx, alice.ID, "", []uuid.UUID{bob.ID}, false)
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if err := s.RemoveParticipant(ctx, direct.ID, bob.ID); err != nil {
		t.Fatalf("remove participant: %v", err)
	}

	fresh, created, err := s.CreateThread(ctx, alice.ID, "", []uuid.UUID{bob.ID}, false)
	if err != nil {
		t.Fatalf("recreate direct thread: %v", err)
	}
	if !created || fresh.ID == direct.ID {
		t.Fatalf("expected a new direct thread, got %d (created=%v)", fresh.ID, created)
	}
	for _, id := range []uuid.UUID{alice.ID, bob.ID} {
		if ok, err := s.IsParticipant(ctx, fresh.ID, id); err != nil || !ok {
			t.Fatalf("expected %s in the new thread (in=%v err=%v)", id, ok, err)
		}
	}
}

func TestDeleteOfficeCascades(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	owner := createUser(t, s, "owner", models.RoleOfficeRenter)
	buyer := createUser(t, s, "buyer", models.RoleMember)

	office := &models.Office{OwnerID: owner.ID, Name: "Harbor Studio", Slug: "harbor-studio", IsPublished: true}
	if err := s.CreateOffice(ctx, office); err != nil {
		t.Fatalf("create office: %v", err)
	}

	root := &models.OfficeDepartment{OfficeID: office.ID, Name: "Studio"}
	if err := s.CreateDepartment(ctx, root); err != nil {
		t.Fatalf("create department: %v", err)
	}
	section := &models.OfficeDepartment{OfficeID: office.ID, ParentID: &root.ID, Name: "Design"}
	if err := s.CreateDepartment(ctx, section); err != nil {
		t.Fatalf("create section: %v", err)
	}
	if err := s.AddOfficeMedia(ctx, &models.OfficeMedia{OfficeID: office.ID, UploaderID: owner.ID, URL: "/objects/a.png"}); err != nil {
		t.Fatalf("add media: %v", err)
	}
	if err := s.AddOfficeMessage(ctx, &models.OfficeMessage{OfficeID: office.ID, SenderName: "Visitor", SenderEmail: "v@x.test", Body: "hello"}); err != nil {
		t.Fatalf("add message: %v", err)
	}
	if err := s.AddOfficeComment(ctx, &models.OfficeComment{OfficeID: office.ID, AuthorID: buyer.ID, Body: "great"}); err != nil {
		t.Fatalf("add comment: %v", err)
	}

	svc := &models.OfficeService{OfficeID: office.ID, Name: "Consulting", PriceCents: 5000, Currency: "usd", ShareToken: "tok-cascade", IsActive: true}
	if err := s.CreateService(ctx, svc); err != nil {
		t.Fatalf("create service: %v", err)
	}
	if err := s.RateService(ctx, &models.ServiceRating{ServiceID: svc.ID, UserID: buyer.ID, Score: 5}); err != nil {
		t.Fatalf("rate: %v", err)
	}

	if err := s.DeleteOffice(ctx, office.ID); err != nil {
		t.Fatalf("delete office: %v", err)
	}

	db := s.DB()
	for _, model := range []interface{}{
		&models.OfficeDepartment{},
		&models.OfficeMedia{},
		&models.OfficeMessage{},
		&models.OfficeComment{},
		&models.OfficeService{},
		&models.ServiceRating{},
	} {
		var count int64
		if err := db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("count %T: %v", model, err)
		}
		if count != 0 {
			t.Errorf("expected %T rows to be cascaded, found %d", model, count)
		}
	}
}

func TestOrderPaymentFlowAndWebhookIdempotence(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	owner := createUser(t, s, "seller", models.RoleOfficeRenter)
	buyer := createUser(t, s, "customer", models.RoleMember)

	office := &models.Office{OwnerID: owner.ID, Name: "Shop", Slug: "shop", IsPublished: true}
	if err := s.CreateOffice(ctx, office); err != nil {
		t.Fatalf("create office: %v", err)
	}
	svc := &models.OfficeService{OfficeID: office.ID, Name: "Audit", PriceCents: 12000, Currency: "usd", ShareToken: "tok-order", IsActive: true}
	if err := s.CreateService(ctx, svc); err != nil {
		t.Fatalf("create service: %v", err)
	}

	order := &models.ServiceOrder{
		ServiceID:   &svc.ID,
		OfficeID:    &office.ID,
		BuyerID:     buyer.ID,
		ServiceName: svc.Name,
		BuyerEmail:  buyer.Email,
		AmountCents: svc.PriceCents,
		Currency:    svc.Currency,
	}
	if err := s.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}

	ev := storage.PaymentEvent{Source: "payments", EventID: "evt_1", EventType: "checkout.completed", SessionID: "cs_1", Succeeded: true, Reference: "pi_1"}

	// settling before checkout is not allowed
	if _, err := s.ApplyPaymentResult(ctx, ev); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}

	if _, err := s.MarkAwaitingPayment(ctx, order.ID, "cs_1"); err != nil {
		t.Fatalf("mark awaiting: %v", err)
	}
	if _, err := s.MarkAwaitingPayment(ctx, order.ID, "cs_2"); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second checkout, got %v", err)
	}

	ev.EventID = "evt_2"
	outcome, err := s.ApplyPaymentResult(ctx, ev)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !outcome.Applied || outcome.Order.Status != models.OrderPaid {
		t.Fatalf("expected order paid, got applied=%v status=%s", outcome.Applied, outcome.Order.Status)
	}

	if _, err := s.ApplyPaymentResult(ctx, ev); !errors.Is(err, storage.ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent on redelivery, got %v", err)
	}

	failed := ev
	failed.EventID = "evt_3"
	failed.Succeeded = false
	outcome, err = s.ApplyPaymentResult(ctx, failed)
	if err != nil {
		t.Fatalf("apply failure: %v", err)
	}
	if outcome.Applied {
		t.Fatal("a paid order must not move to payment_failed")
	}

	got, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != models.OrderPaid || got.PaidAt == nil {
		t.Fatalf("expected paid order with paid_at, got %s", got.Status)
	}

	txns, total, err := s.ListTransactions(ctx, query.NewParams())
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if total != 1 || len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", total)
	}
}

func TestExpiredStatusesAreHidden(t *testing.T) {
	base := openTestStorage(t)
	ctx := context.Background()
	author := createUser(t, base, "storyteller", models.RoleMember)

	now := time.Now().UTC()
	past := base.WithClock(func() time.Time { return now.Add(-25 * time.Hour) })
	current := base.WithClock(func() time.Time { return now })

	old := &models.Status{UserID: author.ID, Content: "yesterday"}
	if err := past.CreateStatus(ctx, old, 24*time.Hour); err != nil {
		t.Fatalf("create old status: %v", err)
	}
	fresh := &models.Status{UserID: author.ID, Content: "today"}
	if err := current.CreateStatus(ctx, fresh, 24*time.Hour); err != nil {
		t.Fatalf("create fresh status: %v", err)
	}

	active, err := current.ListActiveStatuses(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh status, got %d rows", len(active))
	}

	if _, err := current.GetActiveStatus(ctx, old.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected expired status to read as not found, got %v", err)
	}

	var stored int64
	if err := base.DB().Model(&models.Status{}).Count(&stored).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if stored != 2 {
		t.Fatalf("expired rows stay in storage until purged, found %d", stored)
	}

	purged, err := current.PurgeExpiredStatuses(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged status, got %d", purged)
	}
}

func TestDeleteEmailRemovesRowOnceBothSidesDelete(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	sender := createUser(t, s, "sender", models.RoleMember)
	recipient := createUser(t, s, "recipient", models.RoleMember)

	rows, err := s.SendEmail(ctx, &sender.ID, sender.Email, []uuid.UUID{recipient.ID, recipient.ID}, "Hello", "Body")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("duplicate recipients must collapse, got %d rows", len(rows))
	}
	id := rows[0].ID

	unread, _ := s.EmailUnreadCount(ctx, recipient.ID)
	if unread != 1 {
		t.Fatalf("expected 1 unread, got %d", unread)
	}

	if err := s.DeleteEmail(ctx, id, recipient.ID); err != nil {
		t.Fatalf("recipient delete: %v", err)
	}
	if _, err := s.GetEmail(ctx, id, sender.ID); err != nil {
		t.Fatalf("sender should still see the message: %v", err)
	}
	if err := s.DeleteEmail(ctx, id, sender.ID); err != nil {
		t.Fatalf("sender delete: %v", err)
	}

	var count int64
	s.DB().Model(&models.InternalEmail{}).Where("id = ?", id).Count(&count)
	if count != 0 {
		t.Fatal("expected row to be removed after both sides deleted it")
	}
}
