// Package realtime pushes applied changes to connected clients over
// WebSockets. Clients join a per-tenant room; a client may request the
// initial data snapshot after connecting.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"finwave/internal/logger"
)

const writeTimeout = 10 * time.Second

// Event is one message pushed to clients.
type Event struct {
	Type     string          `json:"type"`
	TenantID string          `json:"tenant_id"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Event types.
const (
	EventChangeApplied    = "changeApplied"
	EventInitialData      = "initialData"
	EventTenantDisconnect = "tenantDisconnect"
)

// SnapshotFunc produces the initial-data payload for a tenant. Wired to the
// sync service so the hub stays transport-only.
type SnapshotFunc func(tenantID string) (json.RawMessage, error)

// Hub tracks connected clients per tenant.
type Hub struct {
	upgrader websocket.Upgrader
	snapshot SnapshotFunc

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (c *client) send(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(e)
}

// NewHub creates a hub. snapshot may be nil, in which case initial-data
// requests are answered with an empty payload.
func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The API is token-authenticated; cross-origin browser access
			// is allowed the same way the REST endpoints allow it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		snapshot: snapshot,
		rooms:    make(map[string]map[*client]struct{}),
	}
}

// Serve upgrades the request and runs the client's read loop until the
// connection drops. Blocks; call from the handler goroutine.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tenantID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn}
	h.join(tenantID, c)
	defer h.leave(tenantID, c)
	defer conn.Close()

	for {
		var req struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Get().Debugw("websocket closed unexpectedly", "tenant_id", tenantID, "error", err)
			}
			return nil
		}

		if req.Type == EventInitialData {
			var data json.RawMessage
			if h.snapshot != nil {
				data, err = h.snapshot(tenantID)
				if err != nil {
					logger.Get().Errorw("building initial data snapshot", "tenant_id", tenantID, "error", err)
					continue
				}
			}
			if err := c.send(Event{Type: EventInitialData, TenantID: tenantID, Data: data}); err != nil {
				return nil
			}
		}
	}
}

// Broadcast delivers an event to every client in the tenant's room. Send
// failures are logged and the client is dropped; broadcasting never fails
// the mutation that triggered it.
func (h *Hub) Broadcast(tenantID string, e Event) {
	h.mu.RLock()
	room := make([]*client, 0, len(h.rooms[tenantID]))
	for c := range h.rooms[tenantID] {
		room = append(room, c)
	}
	h.mu.RUnlock()

	for _, c := range room {
		if err := c.send(e); err != nil {
			logger.Get().Debugw("dropping websocket client", "tenant_id", tenantID, "error", err)
			h.leave(tenantID, c)
			c.conn.Close()
		}
	}
}

// NotifyTenantRemoved tells clients the tenant is gone and closes the room.
func (h *Hub) NotifyTenantRemoved(tenantID string) {
	h.Broadcast(tenantID, Event{Type: EventTenantDisconnect, TenantID: tenantID})

	h.mu.Lock()
	for c := range h.rooms[tenantID] {
		c.conn.Close()
	}
	delete(h.rooms, tenantID)
	h.mu.Unlock()
}

func (h *Hub) join(tenantID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[tenantID] == nil {
		h.rooms[tenantID] = make(map[*client]struct{})
	}
	h.rooms[tenantID][c] = struct{}{}
}

func (h *Hub) leave(tenantID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[tenantID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, tenantID)
		}
	}
}
