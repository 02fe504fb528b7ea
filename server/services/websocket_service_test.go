package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"desktown-backend/shared/database/models/notification"
)

func dialManager(t *testing.T, wsm *WebSocketManager, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsm.HandleConnection(w, r, userID)
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var hello notification.WebSocketMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "connection" {
		t.Fatalf("expected connection message, got %+v err=%v", hello, err)
	}
	return conn
}

func TestSendToUserReachesEveryTab(t *testing.T) {
	wsm := NewWebSocketManager()
	alice := uuid.New()

	tab1 := dialManager(t, wsm, alice)
	tab2 := dialManager(t, wsm, alice)

	if !wsm.IsOnline(alice) || wsm.GetConnectionCount() != 2 {
		t.Fatalf("expected alice online with 2 sockets, got %d", wsm.GetConnectionCount())
	}

	msg := notification.NewWebSocketMessage("chat.message", map[string]string{"body": "hi"})
	if err := wsm.SendToUser(alice, &msg); err != nil {
		t.Fatalf("SendToUser: %v", err)
	}

	for i, conn := range []*websocket.Conn{tab1, tab2} {
		var got notification.WebSocketMessage
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("tab %d read: %v", i+1, err)
		}
		if got.Type != "chat.message" {
			t.Fatalf("tab %d got %s", i+1, got.Type)
		}
	}
}

func TestSendToOfflineUser(t *testing.T) {
	wsm := NewWebSocketManager()
	msg := notification.NewWebSocketMessage("notification", nil)

	if err := wsm.SendToUser(uuid.New(), &msg); err != ErrUserOffline {
		t.Fatalf("expected ErrUserOffline, got %v", err)
	}
}

func TestSendToUsersSkipsOfflineUsers(t *testing.T) {
	wsm := NewWebSocketManager()
	alice, bob := uuid.New(), uuid.New()
	conn := dialManager(t, wsm, alice)

	msg := notification.NewWebSocketMessage("call.ended", nil)
	if reached := wsm.SendToUsers([]uuid.UUID{alice, bob}, &msg); reached != 1 {
		t.Fatalf("expected 1 user reached, got %d", reached)
	}

	var got notification.WebSocketMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&got); err != nil || got.Type != "call.ended" {
		t.Fatalf("expected call.ended, got %+v err=%v", got, err)
	}
}

func TestPingGetsPong(t *testing.T) {
	wsm := NewWebSocketManager()
	conn := dialManager(t, wsm, uuid.New())

	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got notification.WebSocketMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&got); err != nil || got.Type != "pong" {
		t.Fatalf("expected pong, got %+v err=%v", got, err)
	}
}
