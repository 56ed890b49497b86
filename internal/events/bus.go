// Package events fans run notifications out to any number of subscribers without ever
// blocking the publisher.
package events

import (
	"sync"
	"time"

	"github.com/jonathan/apply-agent/internal/types"
)

// DefaultBuffer is the channel capacity given to subscribers that ask for none.
const DefaultBuffer = 64

// Bus is a fire-and-forget publish/subscribe hub. A subscriber whose buffer is full misses
// the event; the publisher never waits.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan types.Event
	now         func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Publish delivers e to every subscriber that has room for it.
func (b *Bus) Publish(e types.Event) {
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber channel with the given buffer size.
func (b *Bus) Subscribe(buffer int) <-chan types.Event {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan types.Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes ch and closes it. Unknown channels are ignored.
func (b *Bus) Unsubscribe(ch <-chan types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if (<-chan types.Event)(sub) == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
