package event

import (
	"log/slog"
	"slices"
	"sync"
)

const defaultChannelSize = 64

// Bus is an event bus. Consumers register for named events and receive them
// on a buffered channel. Delivery is best-effort: if a consumer's channel is
// full the event is dropped for that consumer rather than blocking the
// producer.
type Bus struct {
	consumers map[Name][]chan Event
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewBus returns a new event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		consumers: make(map[Name][]chan Event),
		logger:    logger,
	}
}

// Register registers a consumer for a given event name.
func (b *Bus) Register(name Name) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, defaultChannelSize)
	b.consumers[name] = append(b.consumers[name], ch)
	return ch
}

// Deregister removes a consumer channel previously returned by [Register],
// and closes it.
func (b *Bus) Deregister(name Name, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consumers[name] = slices.DeleteFunc(b.consumers[name], func(c chan Event) bool {
		if c == ch {
			close(c)
			return true
		}
		return false
	})
}

// Send sends an event to all consumers registered for its name.
func (b *Bus) Send(evt Event) {
	// The mutex ensures the backing slices cannot be modified mid-send.
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.consumers[evt.EventName()] {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("Event dropped", "name", evt.EventName())
		}
	}
}
