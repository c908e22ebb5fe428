// Package events fans orchestration events out to connected subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/signrelay/signrelay/internal/metrics"
	"github.com/signrelay/signrelay/internal/observability"
)

// Event types emitted by the orchestrator.
const (
	TypeSentenceUpdate     = "sentence_update"
	TypeStatusUpdate       = "status_update"
	TypeConversationUpdate = "conversation_update"
	TypeSystemMessage      = "system_message"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Event is one broadcast message.
type Event struct {
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// SentenceData is the payload of sentence_update.
type SentenceData struct {
	Tokens    []string  `json:"tokens"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationData is the payload of conversation_update.
type ConversationData struct {
	Input    string `json:"input"`
	Response string `json:"response"`
}

// MessageData is the payload of system_message.
type MessageData struct {
	Message string `json:"message"`
}

// Subscription is one registered subscriber. Events arrive on C in
// broadcast order. C is closed when the subscriber is removed.
type Subscription struct {
	ID string
	C  <-chan Event

	ch chan Event
}

// Hub is a process-local broadcaster. The zero value is not usable; call New.
type Hub struct {
	mu     sync.Mutex
	seq    uint64
	subs   map[string]*Subscription
	buffer int
	closed bool
}

// New returns a hub with the given per-subscriber buffer.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[string]*Subscription), buffer: buffer}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	metrics.SetActiveSubscribers(len(h.subs))
	return sub
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(id)
}

// Broadcast assigns the next sequence number and delivers the event to every
// subscriber without blocking. A subscriber whose queue is full is dropped.
func (h *Hub) Broadcast(eventType string, data any) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	evt := Event{Type: eventType, Seq: h.seq, Timestamp: time.Now().UTC(), Data: data}
	for id, sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
			observability.Logger().Warn("Dropping slow subscriber",
				zap.String("subscriber", id),
				zap.String("event", eventType))
			metrics.RecordDroppedSubscriber()
			h.remove(id)
		}
	}
	metrics.RecordBroadcast(eventType)
	return evt
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close removes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id := range h.subs {
		h.remove(id)
	}
}

func (h *Hub) remove(id string) {
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
	metrics.SetActiveSubscribers(len(h.subs))
}
