// Package live runs reconstructions against a changing measurement source
// and fans results out to interested readers.
package live

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
)

// DefaultSubscriberBuffer is the channel capacity given to each subscriber.
const DefaultSubscriberBuffer = 8

// Broker fans published values out to any number of subscribers. Publishing
// never blocks: a subscriber whose buffer is full misses the value.
type Broker[T any] struct {
	buffer int

	mu          sync.Mutex
	subscribers map[string]chan T
	closed      bool
	dropped     uint64
}

// NewBroker returns a broker whose subscriber channels hold buffer values.
// buffer <= 0 selects DefaultSubscriberBuffer.
func NewBroker[T any](buffer int) *Broker[T] {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broker[T]{
		buffer:      buffer,
		subscribers: make(map[string]chan T),
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber. The id is passed to Unsubscribe.
// After Close, the returned channel is already closed.
func (b *Broker[T]) Subscribe() (string, <-chan T) {
	id := randomID()
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker[T]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers v to every subscriber with room for it.
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			b.dropped++
		}
	}
}

// Subscribers returns the number of current subscribers.
func (b *Broker[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Dropped returns the number of deliveries skipped because a subscriber was
// not keeping up.
func (b *Broker[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close closes every subscriber channel. Later subscriptions receive a closed
// channel and publishes are ignored.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
