// Package stream pushes refreshed insights to browser dashboards over
// websockets.
package stream

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// sendBuffer is the number of queued messages per client before drops.
const sendBuffer = 64

// Client is one connected websocket.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans messages out to them. It also keeps
// the last message of each topic so new clients start with a full picture.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	last    map[string][]byte
	order   []string
	logger  *slog.Logger
}

// NewHub returns an empty hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]bool),
		last:    make(map[string][]byte),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	for _, topic := range h.order {
		select {
		case c.send <- h.last[topic]:
		default:
		}
	}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish wraps payload in an Envelope, remembers it as the latest message
// of its topic, and broadcasts it.
func (h *Hub) Publish(msgType, topic string, payload any) error {
	msg, err := NewEnvelope(msgType, topic, payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if _, seen := h.last[topic]; !seen {
		h.order = append(h.order, topic)
	}
	h.last[topic] = msg
	h.mu.Unlock()

	h.Broadcast(msg)
	return nil
}

// Broadcast sends msg to every client. Clients whose buffer is full miss it.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("client buffer full, dropping message")
		}
	}
}

// Latest returns the last envelope published on topic.
func (h *Hub) Latest(topic string) ([]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, ok := h.last[topic]
	return msg, ok
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
