package dev

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/routewrap/internal/build"
)

// EventType represents the type of watch event.
type EventType string

const (
	EventRebuilt  EventType = "rebuilt"
	EventExcluded EventType = "excluded"
	EventFallback EventType = "fallback"
	EventRemoved  EventType = "removed"
	EventError    EventType = "error"
)

// Event is sent to subscribers via WebSocket.
type Event struct {
	Type  EventType `json:"type"`
	File  string    `json:"file,omitempty"`
	Route string    `json:"route,omitempty"`
	Role  string    `json:"role,omitempty"`
	Error string    `json:"error,omitempty"`
}

// EventFor converts a build result into the event announcing it.
func EventFor(fr build.FileResult) Event {
	ev := Event{File: fr.Source, Route: fr.Route, Role: fr.Role, Error: fr.Error}
	switch fr.Status {
	case "transformed":
		ev.Type = EventRebuilt
	case "excluded":
		ev.Type = EventExcluded
	default:
		ev.Type = EventFallback
	}
	return ev
}

type client struct {
	conn *websocket.Conn
	// writes must not run concurrently on one connection
	mu sync.Mutex
}

// Hub manages WebSocket subscribers to watch events.
type Hub struct {
	clients  map[*client]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local tooling connects from anywhere
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
}

// Publish sends ev to all subscribers.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}
