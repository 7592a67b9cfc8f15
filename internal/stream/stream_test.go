package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestBroadcasterReplaysOnlyLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBroadcaster[int]()
	b.Publish(1)
	b.Publish(2)

	ch := b.Subscribe(ctx)
	assert.Equal(t, 2, recv(t, ch))

	b.Publish(3)
	assert.Equal(t, 3, recv(t, ch))
}

func TestBroadcasterConflatesSlowSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBroadcaster[int]()
	ch := b.Subscribe(ctx)
	for i := 1; i <= 5; i++ {
		b.Publish(i)
	}
	assert.Equal(t, 5, recv(t, ch))
}

func TestBroadcasterMulticast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBroadcaster[string]()
	c1 := b.Subscribe(ctx)
	c2 := b.Subscribe(ctx)
	b.Publish("x")
	assert.Equal(t, "x", recv(t, c1))
	assert.Equal(t, "x", recv(t, c2))
}

func TestBroadcasterUnsubscribeOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBroadcaster[int]()
	ch := b.Subscribe(ctx)
	require.Equal(t, 1, b.Subscribers())

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWatchReloadsOnInvalidate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inv := NewInvalidator()
	n := 0
	sub := Watch(ctx, inv, func(context.Context) (int, error) {
		n++
		return n, nil
	})
	assert.Equal(t, 1, recv(t, sub.C()))
	inv.Invalidate()
	assert.Equal(t, 2, recv(t, sub.C()))
}

func TestWatchEndsOnLoadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	sub := Watch(ctx, NewInvalidator(), func(context.Context) (int, error) {
		return 0, boom
	})
	_, ok := <-sub.C()
	require.False(t, ok)
	assert.ErrorIs(t, sub.Err(), boom)
}

func TestWatchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := Watch(ctx, NewInvalidator(), func(context.Context) (int, error) { return 1, nil })
	cancel()
	for range sub.C() {
	}
	assert.ErrorIs(t, sub.Err(), context.Canceled)
}

func TestCombineLatestReemitsOnAnySource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ia, ib := NewInvalidator(), NewInvalidator()
	va, vb := 1, 10
	a := Watch(ctx, ia, func(context.Context) (int, error) { return va, nil })
	b := Watch(ctx, ib, func(context.Context) (int, error) { return vb, nil })
	sum := CombineLatest2(ctx, a, b, func(x, y int) int { return x + y })

	assert.Equal(t, 11, recv(t, sum.C()))

	vb = 20
	ib.Invalidate()
	assert.Equal(t, 21, recv(t, sum.C()))

	va = 2
	ia.Invalidate()
	assert.Equal(t, 22, recv(t, sum.C()))
}

func TestCombineLatest3PropagatesError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	a := Watch(ctx, NewInvalidator(), func(context.Context) (int, error) { return 1, nil })
	b := Watch(ctx, NewInvalidator(), func(context.Context) (int, error) { return 2, nil })
	c := Failed[int](boom)
	out := CombineLatest3(ctx, a, b, c, func(x, y, z int) int { return x + y + z })
	for range out.C() {
	}
	assert.ErrorIs(t, out.Err(), boom)
}

func TestFirst(t *testing.T) {
	inv := NewInvalidator()
	v, err := First(context.Background(), func(ctx context.Context) *Subscription[string] {
		return Watch(ctx, inv, func(context.Context) (string, error) { return "hello", nil })
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = First(context.Background(), func(context.Context) *Subscription[string] {
		return Failed[string](nil)
	})
	assert.ErrorIs(t, err, ErrClosed)
}
