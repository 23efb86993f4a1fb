package ws

import (
	"sync"

	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
)

// Hub maintains the set of active client connections and provides the
// fan-out primitives the orchestrator needs: deliver to one connection, or
// to every connection bound to a room's membership.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Add registers a client under its connection id
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Remove drops a client. Safe to call twice; the send channel is closed
// exactly once.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[connID]; ok {
		delete(h.clients, connID)
		close(c.send)
	}
}

// Get returns the client bound to the connection id
func (h *Hub) Get(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// SendTo delivers an event to a single connection. Returns false when the
// connection is gone; departures race with deliveries, so callers treat
// that as normal.
func (h *Hub) SendTo(connID string, ev domain.Event) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	c.SendEvent(ev)
	return true
}

// SendToRoom delivers an event to every participant member of a room.
// Agent members have no connection and are skipped.
func (h *Hub) SendToRoom(members []domain.RoomMember, ev domain.Event) {
	for _, m := range members {
		if m.Kind != domain.MemberParticipant {
			continue
		}
		h.SendTo(m.ID, ev)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
