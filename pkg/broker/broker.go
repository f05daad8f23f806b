// Package broker provides an in-memory pub/sub hub keyed by topic. It is
// used to push stored chat messages to websocket subscribers of a room.
package broker

import (
	"sync"

	"github.com/google/uuid"
)

// Broker fans messages out to per-topic subscribers. Subscriber channels
// are buffered; a subscriber that falls behind loses messages instead of
// blocking the publisher.
type Broker[T any] struct {
	mu      sync.Mutex
	bufSize int
	subs    map[string]map[string]chan T
}

func New[T any](bufSize int) *Broker[T] {
	if bufSize < 1 {
		bufSize = 1
	}

	return &Broker[T]{
		bufSize: bufSize,
		subs:    make(map[string]map[string]chan T),
	}
}

// Subscribe registers a new subscriber for the topic and returns its id
// and receive channel. The channel is closed by Unsubscribe.
func (b *Broker[T]) Subscribe(topic string) (string, <-chan T) {
	id := uuid.NewString()
	ch := make(chan T, b.bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]chan T)
	}
	b.subs[topic][id] = ch

	return id, ch
}

// Unsubscribe removes the subscriber and closes its channel. Unknown ids
// are ignored.
func (b *Broker[T]) Unsubscribe(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[topic]
	if !ok {
		return
	}

	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}

	if len(subs) == 0 {
		delete(b.subs, topic)
	}
}

// Publish delivers msg to every subscriber of the topic without blocking.
func (b *Broker[T]) Publish(topic string, msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}
