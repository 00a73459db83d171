package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"classattend/internal/metrics"
)

// MemoryHub is a process-local fan-out hub for dev and tests.
type MemoryHub struct {
	buffer int
	mu     sync.RWMutex
	subs   map[int64]map[chan Event]struct{}
}

// NewMemoryHub creates a hub whose subscriber channels hold buffer events.
func NewMemoryHub(buffer int) *MemoryHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &MemoryHub{buffer: buffer, subs: make(map[int64]map[chan Event]struct{})}
}

var _ Hub = (*MemoryHub)(nil)

// Publish delivers evt to every current subscriber of its session. Slow
// subscribers drop events instead of blocking the publisher.
func (h *MemoryHub) Publish(_ context.Context, evt Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[evt.SessionID] {
		select {
		case ch <- evt:
		default:
			log.Warn().Int64("session_id", evt.SessionID).Msg("subscriber buffer full, event dropped")
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (h *MemoryHub) Subscribe(ctx context.Context, sessionID int64) (<-chan Event, error) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()
	metrics.Subscribers.Inc()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[sessionID], ch)
		if len(h.subs[sessionID]) == 0 {
			delete(h.subs, sessionID)
		}
		close(ch)
		h.mu.Unlock()
		metrics.Subscribers.Dec()
	}()
	return ch, nil
}

func (h *MemoryHub) subscriberCount(sessionID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
