package stream

import "context"

// CombineLatest2 emits f over the latest value of each source once both
// have emitted, and again whenever either emits. An erroring source ends
// the combined stream; it completes when both sources complete.
func CombineLatest2[A, B, R any](ctx context.Context, a *Subscription[A], b *Subscription[B], f func(A, B) R) *Subscription[R] {
	s := newSubscription[R]()
	go func() {
		var (
			va         A
			vb         B
			hasA, hasB bool
		)
		ca, cb := a.C(), b.C()
		for ca != nil || cb != nil {
			select {
			case v, ok := <-ca:
				if !ok {
					if err := a.Err(); err != nil {
						s.finish(err)
						drainAll(cb)
						return
					}
					ca = nil
					continue
				}
				va, hasA = v, true
			case v, ok := <-cb:
				if !ok {
					if err := b.Err(); err != nil {
						s.finish(err)
						drainAll(ca)
						return
					}
					cb = nil
					continue
				}
				vb, hasB = v, true
			case <-ctx.Done():
				s.finish(ctx.Err())
				drainAll(ca)
				drainAll(cb)
				return
			}
			if hasA && hasB && !s.send(ctx, f(va, vb)) {
				s.finish(ctx.Err())
				drainAll(ca)
				drainAll(cb)
				return
			}
		}
		s.finish(nil)
	}()
	return s
}

type pair[A, B any] struct {
	a A
	b B
}

// CombineLatest3 is CombineLatest2 over three sources.
func CombineLatest3[A, B, C, R any](ctx context.Context, a *Subscription[A], b *Subscription[B], c *Subscription[C], f func(A, B, C) R) *Subscription[R] {
	ab := CombineLatest2(ctx, a, b, func(x A, y B) pair[A, B] { return pair[A, B]{x, y} })
	return CombineLatest2(ctx, ab, c, func(p pair[A, B], z C) R { return f(p.a, p.b, z) })
}

func drainAll[T any](ch <-chan T) {
	if ch != nil {
		drain(ch)
	}
}
