// Package events fans lifecycle notifications out to dashboard clients over
// websockets. Clients treat events as hints and re-read state from the JSON
// API; events never carry authoritative state.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const clientBuffer = 16

// TypeRegistryUpdated is published after each completed registry fetch.
const TypeRegistryUpdated = "registry_updated"

// Event is one notification on the feed.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	id   int64
	send chan Event
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub queues published events and broadcasts them to every connected client.
type Hub struct {
	queue   chan Event
	history *history
	logger  *slog.Logger
	now     func() time.Time

	eventID  atomic.Int64
	clientID atomic.Int64

	mu      sync.RWMutex
	clients map[int64]*client
}

// NewHub returns a hub whose publish queue and replay history hold queueSize events.
func NewHub(queueSize int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		queue:   make(chan Event, queueSize),
		history: newHistory(queueSize),
		logger:  logger,
		now:     time.Now,
		clients: make(map[int64]*client),
	}
}

// Publish enqueues an event without blocking. When the queue is full the
// event is dropped and logged.
func (h *Hub) Publish(eventType string, payload any) {
	e := Event{
		ID:        h.eventID.Add(1),
		Type:      eventType,
		Payload:   payload,
		Timestamp: h.now().UTC(),
	}
	select {
	case h.queue <- e:
	default:
		h.logger.Warn("Event queue full, dropping event", "type", eventType, "event_id", e.ID)
	}
}

// Run broadcasts queued events until ctx is cancelled, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("Event hub started")
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Event hub shutting down")
			return nil
		case e := <-h.queue:
			h.history.add(e)
			h.broadcast(e)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(e Event) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- e:
		default:
			// Slow consumer: disconnect, it will reconnect and replay.
			h.logger.Warn("Event client too slow, disconnecting", "client_id", c.id)
			h.unregister(c)
		}
	}
}

func (h *Hub) register() *client {
	c := &client{
		id:   h.clientID.Add(1),
		send: make(chan Event, clientBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("Event client registered", "client_id", c.id)
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		h.logger.Info("Event client unregistered", "client_id", c.id)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[int64]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
