package watch

import (
	"context"
	"sync"
	"time"
)

// Hub fans published changes out to in-process subscribers. Delivery never
// blocks the publisher: a subscriber that has not drained its pending
// signal simply keeps that one signal.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	topic Topic
	ch    chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

func (h *Hub) Subscribe(ctx context.Context, topic Topic) (<-chan struct{}, error) {
	sub := &subscription{topic: topic, ch: make(chan struct{}, 1)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.ch)
		h.mu.Unlock()
	}()
	return sub.ch, nil
}

func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.topic.Matches(c) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Broadcast signals every subscriber regardless of topic.
func (h *Hub) Broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Interval signals every Every regardless of topic. It backs the polling
// watch mode.
type Interval struct {
	Every time.Duration
}

func (i Interval) Subscribe(ctx context.Context, _ Topic) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(i.Every)
		defer ticker.Stop()
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}
