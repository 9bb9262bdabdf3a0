// Package realtime carries persistent connections: a hub of channel
// subscriptions and a websocket acceptor that authenticates at handshake and
// authorizes every join and message.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/upb/crm-gateway/models"
)

const defaultSendBuffer = 64

// Client is one connected peer. Outbound envelopes are queued on a bounded
// buffer; a full buffer drops the envelope.
type Client struct {
	ID       string
	Identity *models.Identity

	mu     sync.Mutex
	send   chan models.Envelope
	closed bool
}

// NewClient creates a client with a send buffer of the given size
func NewClient(identity *models.Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan models.Envelope, buffer),
	}
}

// Send queues env without blocking. It reports false when the buffer is full
// or the client is gone.
func (c *Client) Send(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Outbound returns the queue the connection writer drains
func (c *Client) Outbound() <-chan models.Envelope {
	return c.send
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks connected clients and their channel memberships
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]map[string]struct{}
	channels map[string]map[*Client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients:  map[*Client]map[string]struct{}{},
		channels: map[string]map[*Client]struct{}{},
	}
}

// Register adds c to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		h.clients[c] = map[string]struct{}{}
	}
}

// Unregister removes c from every channel and closes its send queue
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	joined, ok := h.clients[c]
	if ok {
		for channel := range joined {
			h.removeLocked(c, channel)
		}
		delete(h.clients, c)
	}
	h.mu.Unlock()

	c.close()
}

// Join subscribes c to channel. It reports false for unregistered clients.
func (h *Hub) Join(c *Client, channel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.clients[c]
	if !ok {
		return false
	}
	joined[channel] = struct{}{}

	members, ok := h.channels[channel]
	if !ok {
		members = map[*Client]struct{}{}
		h.channels[channel] = members
	}
	members[c] = struct{}{}
	return true
}

// Leave unsubscribes c from channel
func (h *Hub) Leave(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if joined, ok := h.clients[c]; ok {
		delete(joined, channel)
	}
	h.removeLocked(c, channel)
}

func (h *Hub) removeLocked(c *Client, channel string) {
	members, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

// IsMember reports whether c has joined channel
func (h *Hub) IsMember(c *Client, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.channels[channel][c]
	return ok
}

// Publish delivers env to every member of channel and returns how many
// clients accepted it.
func (h *Hub) Publish(channel string, env models.Envelope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.channels[channel] {
		if c.Send(env) {
			delivered++
		}
	}
	return delivered
}

// Broadcast delivers env to every connected client
func (h *Hub) Broadcast(env models.Envelope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients {
		if c.Send(env) {
			delivered++
		}
	}
	return delivered
}

// Stats is a point-in-time view of the hub
type Stats struct {
	Clients  int `json:"clients"`
	Channels int `json:"channels"`
}

// GetStats returns the number of clients and non-empty channels
func (h *Hub) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{Clients: len(h.clients), Channels: len(h.channels)}
}
