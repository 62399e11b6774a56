package realtime

import (
	"context"
	"sync"

	"eventix/pkg/logger"

	"github.com/google/uuid"
)

// Subscriber receives messages for the topics it joined. Deliver must not
// block; returning false marks the subscriber as too slow and the hub drops
// it from every topic it is delivering on.
type Subscriber interface {
	ID() string
	Deliver(msg Message) bool
	Close()
}

type topic struct {
	mu   sync.Mutex
	subs map[string]Subscriber
}

// Hub is the in-process topic registry. Delivery on a topic is serialised
// by the topic's mutex, which gives each subscriber publish order.
type Hub struct {
	mu     sync.RWMutex
	topics map[uuid.UUID]*topic
	logger *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		topics: make(map[uuid.UUID]*topic),
		logger: log,
	}
}

// Subscribe adds sub to the event's topic. Subscribing twice is a no-op.
func (h *Hub) Subscribe(eventID uuid.UUID, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[eventID]
	if !ok {
		t = &topic{subs: make(map[string]Subscriber)}
		h.topics[eventID] = t
	}
	t.mu.Lock()
	t.subs[sub.ID()] = sub
	t.mu.Unlock()
}

// Unsubscribe removes the subscriber from the event's topic.
func (h *Hub) Unsubscribe(eventID uuid.UUID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[eventID]
	if !ok {
		return
	}
	t.mu.Lock()
	delete(t.subs, subID)
	empty := len(t.subs) == 0
	t.mu.Unlock()

	if empty {
		delete(h.topics, eventID)
	}
}

// Publish delivers locally. It satisfies Publisher for single-instance
// deployments.
func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.Broadcast(msg)
	return nil
}

// Broadcast delivers msg to the topic's subscribers and returns how many
// received it. Advisory messages skip their origin.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	t, ok := h.topics[msg.EventID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	var dropped []Subscriber
	delivered := 0

	t.mu.Lock()
	for id, sub := range t.subs {
		if msg.Kind.Advisory() && msg.Origin != "" && id == msg.Origin {
			continue
		}
		if sub.Deliver(msg) {
			delivered++
			continue
		}
		delete(t.subs, id)
		dropped = append(dropped, sub)
	}
	t.mu.Unlock()

	for _, sub := range dropped {
		h.logger.Warn("Dropping slow realtime subscriber",
			"subscriber_id", sub.ID(),
			"event_id", msg.EventID.String(),
		)
		sub.Close()
	}
	return delivered
}

// SubscriberCount returns the number of subscribers on the event's topic.
func (h *Hub) SubscriberCount(eventID uuid.UUID) int {
	h.mu.RLock()
	t, ok := h.topics[eventID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// ChannelSubscriber buffers messages on a channel. It backs in-process
// consumers and tests.
type ChannelSubscriber struct {
	id     string
	mu     sync.Mutex
	ch     chan Message
	closed bool
}

func NewChannelSubscriber(id string, buffer int) *ChannelSubscriber {
	return &ChannelSubscriber{id: id, ch: make(chan Message, buffer)}
}

func (s *ChannelSubscriber) ID() string { return s.id }

func (s *ChannelSubscriber) Deliver(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *ChannelSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Messages is closed once the subscriber is dropped or closed.
func (s *ChannelSubscriber) Messages() <-chan Message { return s.ch }
