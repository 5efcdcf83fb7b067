package notify

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// ErrActionNotFound is returned when an action was already invoked, evicted or never existed.
var ErrActionNotFound = errors.New("notify: action not found")

// DefaultSubscriberBuffer is the channel capacity handed to each subscriber.
const DefaultSubscriberBuffer = 32

// Hub registers notification actions under the notification ID so remote
// clients can trigger them later, and fans notifications out to subscribers.
// Unresolved actions are kept in an LRU cache so an ignored action is
// eventually evicted.
type Hub struct {
	actions *lru.Cache[string, func()]
	logger  zerolog.Logger

	mu          sync.Mutex
	subscribers map[int]chan Notification
	nextSub     int
}

// NewHub creates a hub holding at most maxPending unresolved actions.
func NewHub(maxPending int, logger zerolog.Logger) (*Hub, error) {
	cache, err := lru.New[string, func()](maxPending)
	if err != nil {
		return nil, fmt.Errorf("failed to create action cache: %w", err)
	}

	return &Hub{
		actions:     cache,
		subscribers: make(map[int]chan Notification),
		logger:      logger.With().Str("component", "notify-hub").Logger(),
	}, nil
}

// Notify implements Sink.
func (h *Hub) Notify(n Notification) {
	if n.Action != nil && n.Action.Callback != nil {
		h.actions.Add(n.ID, n.Action.Callback)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			h.logger.Warn().
				Int("subscriber", id).
				Str("id", n.ID).
				Msg("Subscriber buffer full, dropping notification")
		}
	}
}

// Invoke runs the action registered for the notification ID. Each action runs at most once.
func (h *Hub) Invoke(id string) error {
	h.mu.Lock()
	callback, ok := h.actions.Peek(id)
	if ok {
		h.actions.Remove(id)
	}
	h.mu.Unlock()

	if !ok {
		return ErrActionNotFound
	}

	h.logger.Debug().Str("id", id).Msg("Invoking notification action")
	callback()
	return nil
}

// Pending returns the number of unresolved actions.
func (h *Hub) Pending() int {
	return h.actions.Len()
}

// Subscribe registers a subscriber. The returned cancel function closes the channel.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSub++
	id := h.nextSub
	ch := make(chan Notification, DefaultSubscriberBuffer)
	h.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers, id)
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
