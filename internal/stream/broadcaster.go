// Package stream implements hot, multicast streams that replay only their
// latest value, live queries driven by invalidation signals, and
// combine-latest composition.
package stream

import (
	"context"
	"sync"
)

// Broadcaster fans every published value out to all current subscribers.
// Subscribers receive the latest value on subscription and then each later
// value; a slow subscriber only ever sees the most recent one.
type Broadcaster[T any] struct {
	mu    sync.Mutex
	value T
	has   bool
	next  uint64
	subs  map[uint64]chan T
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[uint64]chan T)}
}

// NewBroadcasterWith creates a broadcaster that already holds v.
func NewBroadcasterWith[T any](v T) *Broadcaster[T] {
	b := NewBroadcaster[T]()
	b.value, b.has = v, true
	return b
}

// Publish stores v as the latest value and delivers it to every subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value, b.has = v, true
	for _, ch := range b.subs {
		offer(ch, v)
	}
}

// Value returns the latest value, if any.
func (b *Broadcaster[T]) Value() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.has
}

// Subscribe returns a channel that is closed once ctx is done.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.has {
		ch <- b.value
	}
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// offer replaces any undelivered value in a one-slot channel with v.
// Callers hold the broadcaster lock, so they are the only sender.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// Invalidator signals that the data behind live queries changed.
type Invalidator struct {
	mu sync.Mutex
	n  uint64
	b  *Broadcaster[uint64]
}

func NewInvalidator() *Invalidator {
	return &Invalidator{b: NewBroadcasterWith[uint64](0)}
}

// Invalidate wakes every live query bound to this invalidator.
func (i *Invalidator) Invalidate() {
	i.mu.Lock()
	i.n++
	n := i.n
	i.mu.Unlock()
	i.b.Publish(n)
}

func (i *Invalidator) Subscribe(ctx context.Context) <-chan uint64 {
	return i.b.Subscribe(ctx)
}
