package services

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"

	"desktown-backend/shared/config"
	"desktown-backend/shared/database/models/notification"
)

// NotificationStore is the slice of storage the notifier needs
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *notification.Notification) error
	ListPushSubscriptions(ctx context.Context, userID uuid.UUID) ([]notification.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string, userID uuid.UUID) error
}

// RealtimeSender delivers events to open sockets
type RealtimeSender interface {
	SendToUser(userID uuid.UUID, message *notification.WebSocketMessage) error
	SendToUsers(userIDs []uuid.UUID, message *notification.WebSocketMessage) int
}

// PushFunc sends one web push message; webpush.SendNotificationWithContext in production
type PushFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// Notifier persists a notification, pushes it over websocket and fans it out to web push subscriptions
type Notifier struct {
	store   NotificationStore
	sockets RealtimeSender
	push    PushFunc
	options webpush.Options
}

func NewNotifier(store NotificationStore, sockets RealtimeSender, cfg *config.Config) *Notifier {
	n := &Notifier{
		store:   store,
		sockets: sockets,
		options: webpush.Options{
			Subscriber:      cfg.VAPIDSubject,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             3600,
			Urgency:         webpush.UrgencyNormal,
		},
	}
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		n.push = webpush.SendNotificationWithContext
	} else {
		log.Println("⚠️  VAPID keys not set, web push disabled")
	}
	return n
}

// WithPush replaces the push sender
func (n *Notifier) WithPush(push PushFunc) *Notifier {
	n.push = push
	return n
}

// Notify stores the notification and delivers it. Delivery failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, item *notification.Notification) error {
	if err := n.store.CreateNotification(ctx, item); err != nil {
		return err
	}

	msg := notification.NewWebSocketMessage("notification", item)
	if n.sockets != nil {
		n.sockets.SendToUser(item.UserID, &msg)
	}

	if n.push != nil {
		go n.PushToUser(context.Background(), item.UserID, pushPayload(item))
	}
	return nil
}

// Emit sends a realtime event without persisting it
func (n *Notifier) Emit(userID uuid.UUID, eventType string, data interface{}) {
	if n.sockets == nil {
		return
	}
	msg := notification.NewWebSocketMessage(eventType, data)
	n.sockets.SendToUser(userID, &msg)
}

// EmitMany sends the same realtime event to several users
func (n *Notifier) EmitMany(userIDs []uuid.UUID, eventType string, data interface{}) {
	if n.sockets == nil || len(userIDs) == 0 {
		return
	}
	msg := notification.NewWebSocketMessage(eventType, data)
	n.sockets.SendToUsers(userIDs, &msg)
}

type pushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Type  string `json:"type"`
}

func pushPayload(item *notification.Notification) []byte {
	payload, _ := json.Marshal(pushMessage{Title: item.Title, Body: item.Message, URL: item.Link, Type: item.Type})
	return payload
}

// PushToUser sends payload to every subscription of the user and returns how many accepted it.
// Subscriptions answered with 404 or 410 are gone for good and get deleted.
func (n *Notifier) PushToUser(ctx context.Context, userID uuid.UUID, payload []byte) int {
	if n.push == nil {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	subs, err := n.store.ListPushSubscriptions(ctx, userID)
	if err != nil {
		log.Printf("❌ push: list subscriptions for %s: %v", userID, err)
		return 0
	}

	delivered := 0
	for _, sub := range subs {
		opts := n.options
		resp, err := n.push(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{Auth: sub.Auth, P256dh: sub.P256dh},
		}, &opts)
		if err != nil {
			log.Printf("❌ push: send to %s: %v", userID, err)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			if err := n.store.DeletePushSubscription(ctx, sub.Endpoint, uuid.Nil); err != nil {
				log.Printf("push: drop expired subscription: %v", err)
			}
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			delivered++
		default:
			log.Printf("⚠️  push: endpoint answered %d for %s", resp.StatusCode, userID)
		}
	}
	return delivered
}
