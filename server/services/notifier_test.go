package services

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models/notification"
)

type memoryNotificationStore struct {
	mu      sync.Mutex
	created []notification.Notification
	subs    []notification.PushSubscription
	deleted []string
}

func (m *memoryNotificationStore) CreateNotification(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uint(len(m.created) + 1)
	m.created = append(m.created, *n)
	return nil
}

func (m *memoryNotificationStore) ListPushSubscriptions(_ context.Context, userID uuid.UUID) ([]notification.PushSubscription, error) {
	var out []notification.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryNotificationStore) DeletePushSubscription(_ context.Context, endpoint string, _ uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, endpoint)
	return nil
}

type recordingSockets struct {
	sent    []string
	batches [][]uuid.UUID
}

func (r *recordingSockets) SendToUser(_ uuid.UUID, msg *notification.WebSocketMessage) error {
	r.sent = append(r.sent, msg.Type)
	return nil
}

func (r *recordingSockets) SendToUsers(ids []uuid.UUID, msg *notification.WebSocketMessage) int {
	r.batches = append(r.batches, ids)
	r.sent = append(r.sent, msg.Type)
	return len(ids)
}

func respond(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func TestNotifyPersistsAndPushesOverSocket(t *testing.T) {
	store := &memoryNotificationStore{}
	sockets := &recordingSockets{}
	n := NewNotifier(store, sockets, &config.Config{})

	item := &notification.Notification{UserID: uuid.New(), Type: notification.TypeTaskAssigned, Title: "New task", Message: "Review the lease"}
	if err := n.Notify(context.Background(), item); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(store.created) != 1 || item.ID == 0 {
		t.Fatalf("expected notification persisted, got %+v", store.created)
	}
	if len(sockets.sent) != 1 || sockets.sent[0] != "notification" {
		t.Fatalf("expected one websocket notification, got %v", sockets.sent)
	}
}

func TestPushToUserDropsGoneSubscriptions(t *testing.T) {
	user := uuid.New()
	store := &memoryNotificationStore{subs: []notification.PushSubscription{
		{UserID: user, Endpoint: "https://push.test/ok"},
		{UserID: user, Endpoint: "https://push.test/gone"},
		{UserID: user, Endpoint: "https://push.test/missing"},
		{UserID: user, Endpoint: "https://push.test/busy"},
	}}

	n := NewNotifier(store, nil, &config.Config{}).WithPush(func(_ context.Context, _ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		switch {
		case strings.HasSuffix(sub.Endpoint, "/gone"):
			return respond(http.StatusGone), nil
		case strings.HasSuffix(sub.Endpoint, "/missing"):
			return respond(http.StatusNotFound), nil
		case strings.HasSuffix(sub.Endpoint, "/busy"):
			return respond(http.StatusTooManyRequests), nil
		}
		return respond(http.StatusCreated), nil
	})

	delivered := n.PushToUser(context.Background(), user, []byte(`{}`))

	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("expected gone and missing endpoints deleted, got %v", store.deleted)
	}
}

func TestEmitManySendsOneBatch(t *testing.T) {
	sockets := &recordingSockets{}
	n := NewNotifier(&memoryNotificationStore{}, sockets, &config.Config{})

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	n.EmitMany(ids, "meeting.cancelled", map[string]string{"title": "Standup"})
	n.EmitMany(nil, "meeting.cancelled", nil)

	if len(sockets.batches) != 1 || len(sockets.batches[0]) != 3 {
		t.Fatalf("expected one batch of 3 users, got %v", sockets.batches)
	}
	if len(sockets.sent) != 1 || sockets.sent[0] != "meeting.cancelled" {
		t.Fatalf("unexpected events %v", sockets.sent)
	}
}
