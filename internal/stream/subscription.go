package stream

import (
	"context"
	"errors"
)

// ErrClosed is returned by First when a stream ends without emitting.
var ErrClosed = errors.New("stream closed without a value")

// Subscription is a live read. C is closed when the stream ends; Err then
// reports why (nil for a normal end, the ctx error on cancellation).
type Subscription[T any] struct {
	c   chan T
	err error
}

func newSubscription[T any]() *Subscription[T] {
	return &Subscription[T]{c: make(chan T)}
}

func (s *Subscription[T]) C() <-chan T { return s.c }

// Err must only be called after C is closed.
func (s *Subscription[T]) Err() error { return s.err }

func (s *Subscription[T]) finish(err error) {
	s.err = err
	close(s.c)
}

func (s *Subscription[T]) send(ctx context.Context, v T) bool {
	select {
	case s.c <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

// Failed returns a subscription that ends immediately with err.
func Failed[T any](err error) *Subscription[T] {
	s := newSubscription[T]()
	s.finish(err)
	return s
}

// Watch runs load once immediately and again after every invalidation,
// emitting each result. A load error ends the subscription.
func Watch[T any](ctx context.Context, inv *Invalidator, load func(context.Context) (T, error)) *Subscription[T] {
	s := newSubscription[T]()
	ticks := inv.Subscribe(ctx)
	go func() {
		for range ticks {
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				s.finish(err)
				drain(ticks)
				return
			}
			if !s.send(ctx, v) {
				break
			}
		}
		s.finish(ctx.Err())
		drain(ticks)
	}()
	return s
}

// First returns the first value produced by open and then cancels the
// subscription.
func First[T any](ctx context.Context, open func(context.Context) *Subscription[T]) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub := open(ctx)
	v, ok := <-sub.C()
	if !ok {
		var zero T
		if err := sub.Err(); err != nil {
			return zero, err
		}
		return zero, ErrClosed
	}
	return v, nil
}

func drain[T any](ch <-chan T) {
	go func() {
		for range ch {
		}
	}()
}
