package inapp

import (
	"context"
	"sync"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
)

// Hub fans notifications out to in-process subscribers, keyed by user.
// It backs in-app delivery when no Redis is configured. A subscriber whose
// buffer is full misses the message but stays subscribed.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]map[*Subscription]struct{}
	bufferSize int
	closed     bool
	done       chan struct{}
	cleanup    sync.WaitGroup
}

// Subscription receives one user's messages until it is closed.
type Subscription struct {
	userID string
	ch     chan Message
	mu     sync.RWMutex
	closed bool
}

// C returns the delivery channel. It is closed with the subscription.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Close stops delivery. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

func (s *Subscription) send(m Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- m:
	default:
	}
}

// NewHub creates a hub with a per-subscriber buffer of bufferSize (at least 1).
func NewHub(bufferSize int) *Hub {
	return &Hub{
		subs:       make(map[string]map[*Subscription]struct{}),
		bufferSize: max(bufferSize, 1),
		done:       make(chan struct{}),
	}
}

var _ notifications.InAppPublisher = (*Hub)(nil)

// Subscribe registers a subscriber for userID. It is removed when ctx is done.
// After Close it returns an already closed subscription.
func (h *Hub) Subscribe(ctx context.Context, userID string) *Subscription {
	sub := &Subscription{userID: userID, ch: make(chan Message, h.bufferSize)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.Close()
		return sub
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}

	if ctx.Done() != nil {
		h.cleanup.Add(1)
		go func() {
			defer h.cleanup.Done()
			select {
			case <-ctx.Done():
				h.unsubscribe(sub)
			case <-h.done:
			}
		}()
	}
	return sub
}

// Publish delivers notif to every subscriber of its user. It never blocks:
// subscribers with a full buffer skip the message.
func (h *Hub) Publish(_ context.Context, notif notifications.Notification) error {
	msg := newMessage(notif)

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}
	for sub := range h.subs[notif.UserID] {
		sub.send(msg)
	}
	return nil
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close closes every subscription. Later Publish calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.done)
	for _, set := range h.subs {
		for sub := range set {
			sub.Close()
		}
	}
	clear(h.subs)
	h.mu.Unlock()

	h.cleanup.Wait()
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
	sub.Close()
}
