// Package hub fans messages out to subscribers (websocket clients, WebRTC
// peers) over per-subscriber buffered channels.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

// MessageType indicates the wire format of a message.
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (e.g., JPEG frames)
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// Subscription receives broadcasts until it is closed or dropped.
type Subscription struct {
	hub  *Hub
	send chan Message
}

// C returns the message channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Message {
	return s.send
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	select {
	case s.hub.unregister <- s:
	case <-s.hub.done:
	}
}

// Hub maintains the set of active subscriptions and broadcasts to them.
type Hub struct {
	name   string
	logger *slog.Logger

	subs       map[*Subscription]bool
	broadcast  chan Message
	register   chan *Subscription
	unregister chan *Subscription
	done       chan struct{}

	// Protects subs for ClientCount
	mu      sync.RWMutex
	running atomic.Bool
	dropped atomic.Int64
}

// New creates a new Hub.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("hub", name),
		subs:       make(map[*Subscription]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is done, closing every
// subscription.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.mu.Lock()
		for sub := range h.subs {
			delete(h.subs, sub)
			close(sub.send)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case sub := <-h.register:
			h.mu.Lock()
			h.subs[sub] = true
			count := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("subscriber connected", "total", count)

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.send)
			}
			count := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("subscriber disconnected", "remaining", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.subs {
				select {
				case sub.send <- message:
				default:
					// Subscriber is too slow; drop it.
					close(sub.send)
					delete(h.subs, sub)
					h.logger.Warn("dropped slow subscriber")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribe registers a new subscription with the given buffer size.
// It returns nil if the hub has stopped.
func (h *Hub) Subscribe(buffer int) *Subscription {
	sub := &Subscription{hub: h, send: make(chan Message, buffer)}
	select {
	case h.register <- sub:
		return sub
	case <-h.done:
		return nil
	}
}

// Broadcast queues a message for all subscribers. Messages are dropped
// when the broadcast queue is full.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastJSON encodes and broadcasts a JSON message.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Type: JSONMessage, Data: data})
	return nil
}

// BroadcastBinary broadcasts binary data (e.g., camera frames).
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Message{Type: BinaryMessage, Data: data})
}

// ClientCount returns the number of active subscriptions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// IsRunning returns whether the hub loop is running.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Dropped returns how many broadcasts were dropped on a full queue.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
