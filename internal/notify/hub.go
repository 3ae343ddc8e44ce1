package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 16

// Hub fans events out to in-process subscribers such as SSE streams.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		logger: logger,
	}
}

// Subscribe registers a listener. The returned func unregisters it and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of registered listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, evt Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.logger.Warn("dropping event for slow subscriber", zap.String("type", evt.Type), zap.String("date", evt.Date))
		}
	}
	return nil
}
