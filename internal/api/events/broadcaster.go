// Package events fans application events out to SSE subscribers.
package events

import (
	"encoding/json"
	"log"
	"sync"
)

const subscriberBuffer = 128

// Event is one named payload pushed to clients.
type Event struct {
	Name string
	Data []byte // JSON-encoded payload
}

// Broadcaster delivers events to any number of SSE subscribers. Slow
// consumers drop events rather than block the publisher.
type Broadcaster struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Publish encodes data and delivers it to every subscriber.
func (b *Broadcaster) Publish(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("[EVENTS] Failed to encode %s event: %v", event, err)
		return
	}
	e := Event{Name: event, Data: payload}

	b.mu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default: // slow consumer: drop rather than block
		}
	}
	b.mu.Unlock()
}

// Subscribe returns a channel of future events and a cancel func that
// must be called when the subscriber disconnects.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	c := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs = append(b.subs, c)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == c {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		close(c)
	}
	return c, cancel
}

// Subscribers reports the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
