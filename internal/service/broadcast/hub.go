// Package broadcast fans ride events out to local subscribers.
// Delivery is best-effort: a subscriber whose buffer is full misses the event.
package broadcast

import (
	"context"
	"sync"

	"github.com/Temutjin2k/ride-match/internal/domain/models"
	"github.com/Temutjin2k/ride-match/pkg/logger"
	"github.com/Temutjin2k/ride-match/pkg/metrics"
)

const DefaultBuffer = 16

// Message is an event together with the topic it was published on.
type Message struct {
	Topic string
	Event models.BroadcastEvent
}

type Subscription struct {
	topics []string
	ch     chan Message
	hub    *Hub
	once   sync.Once
}

// C is closed after Close or when the hub shuts down.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

func (s *Subscription) Topics() []string {
	return s.topics
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool
	buffer int
	l      logger.Logger
}

func NewHub(buffer int, l logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		l:      l,
	}
}

// Subscribe returns one stream for all the given topics.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		topics: topics,
		ch:     make(chan Message, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	for _, t := range topics {
		subs, ok := h.topics[t]
		if !ok {
			subs = make(map[*Subscription]struct{})
			h.topics[t] = subs
		}
		subs[sub] = struct{}{}
	}
	metrics.BroadcastSubscribersGauge.Inc()
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	for _, t := range sub.topics {
		subs := h.topics[t]
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, t)
		}
	}
	close(sub.ch)
	metrics.BroadcastSubscribersGauge.Dec()
}

// Publish delivers event to the subscribers of a single topic.
func (h *Hub) Publish(ctx context.Context, topic string, event models.BroadcastEvent) error {
	return h.PublishMany(ctx, []string{topic}, event)
}

// PublishMany delivers event at most once to every subscription that listens on any of topics.
// The message carries the first of topics the subscription matched.
// It never blocks. Senders hold the read lock, so no channel is closed mid-send.
func (h *Hub) PublishMany(ctx context.Context, topics []string, event models.BroadcastEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matched := make(map[*Subscription]string)
	order := make([]*Subscription, 0)
	for _, topic := range topics {
		for sub := range h.topics[topic] {
			if _, ok := matched[sub]; ok {
				continue
			}
			matched[sub] = topic
			order = append(order, sub)
		}
	}

	for _, sub := range order {
		topic := matched[sub]
		select {
		case sub.ch <- Message{Topic: topic, Event: event}:
			metrics.BroadcastEventsTotal.WithLabelValues("delivered").Inc()
		default:
			metrics.BroadcastEventsTotal.WithLabelValues("dropped").Inc()
			h.l.Warn(ctx, "subscriber buffer full, event dropped", "topic", topic, "event_type", event.EventType, "version", event.Version)
		}
	}
	return nil
}

// Subscribers returns the number of subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	seen := make(map[*Subscription]struct{})
	for _, subs := range h.topics {
		for sub := range subs {
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			close(sub.ch)
			metrics.BroadcastSubscribersGauge.Dec()
		}
	}
	h.topics = make(map[string]map[*Subscription]struct{})
}
