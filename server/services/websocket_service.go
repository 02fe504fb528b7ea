package services

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"desktown-backend/shared/database/models/notification"
)

// ErrUserOffline is returned by SendToUser when the user has no open sockets
var ErrUserOffline = errors.New("user not connected")

const writeWait = 10 * time.Second

// wsClient is one browser tab. gorilla connections allow a single concurrent writer.
type wsClient struct {
	userID uuid.UUID
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *wsClient) write(message *notification.WebSocketMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(message)
}

// WebSocketManager tracks every open socket, grouped by user
type WebSocketManager struct {
	clients  map[uuid.UUID]map[*wsClient]struct{}
	mutex    sync.RWMutex
	upgrader websocket.Upgrader
}

// NewWebSocketManager accepts upgrades from allowedOrigins; requests without an Origin header are allowed
func NewWebSocketManager(allowedOrigins ...string) *WebSocketManager {
	return &WebSocketManager{
		clients: make(map[uuid.UUID]map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				log.Printf("🚫 WebSocket connection rejected from origin: %s", origin)
				return false
			},
		},
	}
}

func (wsm *WebSocketManager) register(client *wsClient) {
	wsm.mutex.Lock()
	set, ok := wsm.clients[client.userID]
	if !ok {
		set = make(map[*wsClient]struct{})
		wsm.clients[client.userID] = set
	}
	set[client] = struct{}{}
	total := len(wsm.clients)
	wsm.mutex.Unlock()

	log.Printf("🔌 WebSocket client connected: %s (users online: %d)", client.userID, total)
}

func (wsm *WebSocketManager) unregister(client *wsClient) {
	wsm.mutex.Lock()
	if set, ok := wsm.clients[client.userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(wsm.clients, client.userID)
		}
	}
	wsm.mutex.Unlock()
	client.conn.Close()
}

func (wsm *WebSocketManager) snapshot(userID uuid.UUID) []*wsClient {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()

	set := wsm.clients[userID]
	out := make([]*wsClient, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// SendToUser writes message to every socket the user has open
func (wsm *WebSocketManager) SendToUser(userID uuid.UUID, message *notification.WebSocketMessage) error {
	clients := wsm.snapshot(userID)
	if len(clients) == 0 {
		return ErrUserOffline
	}

	var lastErr error
	delivered := 0
	for _, c := range clients {
		if err := c.write(message); err != nil {
			log.Printf("❌ Failed to send %s to user %s: %v", message.Type, userID, err)
			go wsm.unregister(c)
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return lastErr
	}
	return nil
}

// SendToUsers fans message out and returns how many users received it; offline users are skipped
func (wsm *WebSocketManager) SendToUsers(userIDs []uuid.UUID, message *notification.WebSocketMessage) int {
	reached := 0
	for _, id := range userIDs {
		if wsm.SendToUser(id, message) == nil {
			reached++
		}
	}
	return reached
}

// BroadcastToAll sends message to every connected user
func (wsm *WebSocketManager) BroadcastToAll(message *notification.WebSocketMessage) {
	for _, id := range wsm.GetConnectedUsers() {
		wsm.SendToUser(id, message)
	}
}

// HandleConnection upgrades the request and serves the socket until it closes.
// userID comes from the session middleware, never from the client.
func (wsm *WebSocketManager) HandleConnection(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := wsm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ Failed to upgrade WebSocket: %v", err)
		return
	}

	client := &wsClient{userID: userID, conn: conn}
	wsm.register(client)
	defer wsm.unregister(client)

	client.write(ptr(notification.NewWebSocketMessage("connection", map[string]string{"user_id": userID.String()})))

	for {
		var message map[string]interface{}
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket error for user %s: %v", userID, err)
			}
			return
		}

		if msgType, ok := message["type"].(string); ok && msgType == "ping" {
			client.write(ptr(notification.NewWebSocketMessage("pong", nil)))
		}
	}
}

// IsOnline reports whether the user has at least one open socket
func (wsm *WebSocketManager) IsOnline(userID uuid.UUID) bool {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()
	return len(wsm.clients[userID]) > 0
}

func (wsm *WebSocketManager) GetConnectedUsers() []uuid.UUID {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()

	users := make([]uuid.UUID, 0, len(wsm.clients))
	for userID := range wsm.clients {
		users = append(users, userID)
	}
	return users
}

// GetConnectionCount returns the number of open sockets across all users
func (wsm *WebSocketManager) GetConnectionCount() int {
	wsm.mutex.RLock()
	defer wsm.mutex.RUnlock()

	n := 0
	for _, set := range wsm.clients {
		n += len(set)
	}
	return n
}

func ptr[T any](v T) *T {
	return &v
}
