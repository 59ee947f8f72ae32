// Package websocket provides WebSocket connection management and message broadcasting.
package websocket

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// sendBuffer is the per-client outbound queue length.
const sendBuffer = 256

type outbound struct {
	msgType MessageType
	data    []byte
}

type direct struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan outbound
	reply      chan direct
	register   chan *Client
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		reply:      make(chan direct, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("websocket.hub"),
	}
}

// Run starts the hub's main event loop and blocks until ctx is cancelled.
// On return every client's send channel is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", zap.Int("total", total))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.Wants(msg.msgType) {
					continue
				}
				h.deliver(client, msg.data)
			}
			h.mu.Unlock()

		case d := <-h.reply:
			h.mu.Lock()
			if h.clients[d.client] {
				h.deliver(d.client, d.data)
			}
			h.mu.Unlock()
		}
	}
}

// deliver queues data for a client, dropping the client if its buffer is
// full. Callers hold h.mu.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		close(client.send)
		delete(h.clients, client)
		h.logger.Warn("dropping slow client")
	}
}

// Broadcast sends an encoded message of the given type to all subscribed clients.
func (h *Hub) Broadcast(msgType MessageType, message []byte) {
	select {
	case h.broadcast <- outbound{msgType: msgType, data: message}:
	default:
		h.logger.Warn("broadcast channel full, dropping message", zap.String("type", string(msgType)))
	}
}

// Reply sends a message to a single registered client.
func (h *Hub) Reply(client *Client, message []byte) {
	select {
	case h.reply <- direct{client: client, data: message}:
	case <-h.done:
	default:
		h.logger.Warn("reply channel full, dropping message")
	}
}

// Register adds a client to the hub. If the hub has stopped the client's
// send channel is closed immediately.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Running reports whether the event loop is still active.
func (h *Hub) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Client represents a WebSocket client connection.
type Client struct {
	hub  *Hub
	send chan []byte

	mu     sync.RWMutex
	topics map[string]bool
}

// NewClient creates a new WebSocket client subscribed to every topic.
func NewClient(hub *Hub) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]bool),
	}
}

// Send returns the send channel for the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Subscribe limits delivery to the given topics ("lunar", "event",
// "notification"). A client with no topics receives everything.
func (c *Client) Subscribe(topics ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		c.topics[strings.ToLower(t)] = true
	}
}

// Unsubscribe removes topics from the client's filter.
func (c *Client) Unsubscribe(topics ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.topics, strings.ToLower(t))
	}
}

// Topics returns the client's current subscriptions.
func (c *Client) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Wants reports whether a message of type t should be delivered.
func (c *Client) Wants(t MessageType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 {
		return true
	}
	return c.topics[t.Topic()]
}
