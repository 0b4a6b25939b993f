// Package notify fans media item updates out to live subscribers.
package notify

import (
	"sync"
	"time"

	"github.com/amaumene/storarr/internal/metrics"
	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
)

// SubscriberBuffer is the number of events a subscriber may fall behind by
const SubscriberBuffer = 32

// EventMediaUpdated is the type of every event published by the hub
const EventMediaUpdated = "mediaUpdated"

// Event is one committed state change
type Event struct {
	Type        string           `json:"type"`
	MediaItemID uint             `json:"mediaItemId"`
	State       models.FileState `json:"state"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Hub is a fire-and-forget broadcaster. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
	logger zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		logger: utils.WithComponent(logger, "notify"),
	}
}

// MediaUpdated publishes a state change to every subscriber
func (h *Hub) MediaUpdated(id uint, state models.FileState) {
	event := Event{
		Type:        EventMediaUpdated,
		MediaItemID: id,
		State:       state,
		Timestamp:   time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			metrics.NotificationsDropped.Inc()
			h.logger.Debug().Uint("media_id", id).Msg("Subscriber not keeping up, dropping event")
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func closes the
// channel and is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, SubscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of live subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
