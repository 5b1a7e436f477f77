package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"guild-chat-service/internal/models"
	"guild-chat-service/internal/observability"
)

const wsEventsRoutingKey = "ws_events.channels"

// client pairs a connection's identity with its write lock. Broadcasts for
// different rooms run on different goroutines, and the websocket library
// allows only one concurrent writer per connection, so every write to the
// socket must hold mu.
type client struct {
	mu   sync.Mutex
	info ConnInfo
}

// Hub maintains the live channel rooms. One connection may sit in many
// rooms at once; a dead connection is pruned from every room on the first
// failed write.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[int64]map[*websocket.Conn]bool
	clients map[*websocket.Conn]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[int64]map[*websocket.Conn]bool),
		clients: make(map[*websocket.Conn]*client),
	}
}

// RegisterConn records a connection's identity. Call before any room joins.
func (h *Hub) RegisterConn(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{info: info}
}

// UnregisterConn drops the connection from every room it joined.
func (h *Hub) UnregisterConn(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channelID, conns := range h.rooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, channelID)
		}
	}
	delete(h.clients, conn)
}

// JoinRoom subscribes the connection to a channel's fan-out.
func (h *Hub) JoinRoom(channelID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[channelID]; !ok {
		h.rooms[channelID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[channelID][conn] = true
}

// LeaveRoom unsubscribes the connection from a channel.
func (h *Hub) LeaveRoom(channelID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[channelID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, channelID)
		}
	}
}

// InRoom reports whether the connection has joined the channel.
func (h *Hub) InRoom(channelID int64, conn *websocket.Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[channelID][conn]
}

// RoomSize returns the number of live connections in a channel.
func (h *Hub) RoomSize(channelID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channelID])
}

// BroadcastEvent sends the event to every connection in the channel's room
// except the one identified by excludeConnID. Connections that fail the
// write are closed and removed.
func (h *Hub) BroadcastEvent(channelID int64, event models.ChatEvent, excludeConnID string) {
	type target struct {
		conn *websocket.Conn
		cl   *client
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.rooms[channelID]))
	for conn := range h.rooms[channelID] {
		cl, ok := h.clients[conn]
		if !ok {
			continue
		}
		if excludeConnID != "" && cl.info.ConnID == excludeConnID {
			continue
		}
		targets = append(targets, target{conn: conn, cl: cl})
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, t := range targets {
		if err := h.writeLocked(t.conn, t.cl, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			t.conn.Close()
			h.publishWSError(channelID, t.conn, err)
			h.UnregisterConn(t.conn)
		}
	}
	observability.IncWSEvent("gateway", event.Type)
}

// SendTo writes one event to a single connection, serialized against any
// in-flight broadcasts to the same connection.
func (h *Hub) SendTo(conn *websocket.Conn, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	cl, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		// Not registered, so no broadcast can target it concurrently.
		return conn.WriteMessage(websocket.TextMessage, payload)
	}
	return h.writeLocked(conn, cl, payload)
}

func (h *Hub) writeLocked(conn *websocket.Conn, cl *client, payload []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) publishWSError(channelID int64, conn *websocket.Conn, err error) {
	h.mu.RLock()
	cl, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}
	info := cl.info

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"channel_id":  channelID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id": info.UserID,
			"ip":      info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsEventsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("gateway", "ws_error")
}
