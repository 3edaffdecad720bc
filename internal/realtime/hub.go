// Package realtime implements the in-process change-notification hub.
// Writers publish domain events to a topic ("conversation:42",
// "room:<uuid>", "meetings:<userID>"); subscribers receive them over a
// buffered channel wrapped in a cancellable handle. Every event carries a
// per-topic sequence number so consumers can detect gaps and reconcile
// ordering instead of appending blindly.
package realtime

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a single change notification delivered to subscribers.
type Event struct {
	Topic   string    `json:"topic"`
	Seq     uint64    `json:"seq"`
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Topic name constructors used across handlers.
func ConversationTopic(id uint64) string { return fmt.Sprintf("conversation:%d", id) }
func RoomTopic(id string) string         { return "room:" + id }
func MeetingsTopic(userID string) string { return "meetings:" + userID }

// Subscription is a cancellable handle on a topic. C yields events until
// Cancel is called; Cancel is idempotent and safe concurrently with
// delivery.
type Subscription struct {
	C <-chan Event

	hub    *Hub
	topic  string
	id     uint64
	ch     chan Event
	cancel sync.Once
}

// Cancel detaches the subscription from the hub and closes C.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() { s.hub.remove(s.topic, s.id, s.ch) })
}

// Hub fans events out to topic subscribers. Delivery is non-blocking: a
// subscriber whose buffer is full misses the event and is expected to
// notice the sequence gap and re-sync, so one slow consumer cannot stall
// the writers.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]chan Event
	seqs   map[string]uint64
	nextID uint64
	log    *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		topics: make(map[string]map[uint64]chan Event),
		seqs:   make(map[string]uint64),
		log:    log,
	}
}

// Subscribe registers a listener on a topic. The buffer bounds how far a
// consumer may lag before events are dropped for it.
func (h *Hub) Subscribe(topic string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[uint64]chan Event)
	}
	h.topics[topic][id] = ch
	h.mu.Unlock()

	return &Subscription{C: ch, hub: h, topic: topic, id: id, ch: ch}
}

// Publish assigns the next sequence number for the topic and delivers
// the event to all current subscribers. It returns the published event.
// Delivery happens under the lock; since sends never block, the hold
// time is bounded, and a channel can never be closed mid-send.
func (h *Hub) Publish(topic, eventType string, payload any) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seqs[topic]++
	ev := Event{
		Topic:   topic,
		Seq:     h.seqs[topic],
		Type:    eventType,
		Payload: payload,
		At:      time.Now().UTC(),
	}
	for _, ch := range h.topics[topic] {
		select {
		case ch <- ev:
		default:
			h.log.Warn("realtime: dropping event for slow subscriber",
				zap.String("topic", topic), zap.Uint64("seq", ev.Seq))
		}
	}
	return ev
}

// SubscriberCount reports how many subscriptions a topic currently has.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) remove(topic string, id uint64, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	close(ch)
}
