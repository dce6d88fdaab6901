package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"membership-service/internal/models"
	"membership-service/internal/observability"
)

const routingKey = "ws_events.groups"

// conn is the subset of *websocket.Conn the hub writes to.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// client wraps a room connection. A websocket connection supports one
// concurrent writer, so every write goes through mu.
type client struct {
	conn conn
	info ConnInfo
	mu   sync.Mutex
}

func (cl *client) write(data []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub maintains one websocket room per group.
type Hub struct {
	rooms map[string]map[conn]*client
	log   *zap.Logger
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{rooms: make(map[string]map[conn]*client), log: log}
}

// AddGroupClient registers a websocket connection to a group room.
func (h *Hub) AddGroupClient(groupID string, c conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[groupID]; !ok {
		h.rooms[groupID] = make(map[conn]*client)
	}
	h.rooms[groupID][c] = &client{conn: c, info: info}
}

// RemoveGroupClient removes a group websocket connection.
func (h *Hub) RemoveGroupClient(groupID string, c conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[groupID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, groupID)
		}
	}
}

// ClientCount reports the connections open for a group.
func (h *Hub) ClientCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}

// BroadcastGroupEvent sends event to every client in the event's group.
// Clients whose write fails are dropped from the room. It is safe to call
// from several goroutines at once.
func (h *Hub) BroadcastGroupEvent(event models.GroupEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal group event", zap.String("type", event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[event.GroupID]))
	for _, cl := range h.rooms[event.GroupID] {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	for _, cl := range targets {
		if err := cl.write(payload); err != nil {
			h.log.Warn("websocket write error",
				zap.String("group_id", event.GroupID),
				zap.String("conn_id", cl.info.ConnID),
				zap.Error(err),
			)
			_ = cl.conn.Close()
			h.RemoveGroupClient(event.GroupID, cl.conn)
			h.publishWSError(event.GroupID, cl.info, err)
		}
	}
}

func (h *Hub) publishWSError(groupID string, info ConnInfo, err error) {
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if pubErr := observability.PublishEvent(context.Background(), routingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   info.payload(groupID, "ws_error", err.Error()),
	}, headers); pubErr != nil {
		h.log.Debug("publish ws event failed",
			zap.String("group_id", groupID),
			zap.String("event", "ws_error"),
			zap.Error(pubErr),
		)
	}
	observability.IncWSEvent("group", "ws_error")
}
