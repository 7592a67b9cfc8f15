package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// UseCase runs a domain operation on a dispatcher and reports its outcomes
// as Results.
type UseCase[Req, Resp any] struct {
	name       string
	dispatcher *Dispatcher
	single     bool
	run        func(ctx context.Context, req Req, emit func(Resp) error) error
}

// Single builds a use case that emits exactly one Result per execution. It
// holds a dispatcher slot for the whole call.
func Single[Req, Resp any](name string, d *Dispatcher, fn func(ctx context.Context, req Req) (Resp, error)) *UseCase[Req, Resp] {
	return &UseCase[Req, Resp]{
		name:       name,
		dispatcher: d,
		single:     true,
		run: func(ctx context.Context, req Req, emit func(Resp) error) error {
			resp, err := fn(ctx, req)
			if err != nil {
				return err
			}
			return emit(resp)
		},
	}
}

// Flow builds a use case that emits one Result per upstream update. The
// dispatcher slot is held until the first emission, so long-lived flows do
// not starve the pool while they wait on their sources.
func Flow[Req, Resp any](name string, d *Dispatcher, fn func(ctx context.Context, req Req, emit func(Resp) error) error) *UseCase[Req, Resp] {
	return &UseCase[Req, Resp]{name: name, dispatcher: d, run: fn}
}

func (u *UseCase[Req, Resp]) Name() string { return u.name }

// Execute starts the operation and returns its outcomes. The channel is
// closed when the operation ends. Cancelling ctx stops the operation and
// closes the channel without an error Result.
func (u *UseCase[Req, Resp]) Execute(ctx context.Context, req Req) <-chan Result[Resp] {
	out := make(chan Result[Resp], 1)
	go func() {
		defer close(out)

		release, err := u.dispatcher.Acquire(ctx)
		if err != nil {
			return
		}
		defer release()

		emit := func(v Resp) error {
			if !u.single {
				release()
			}
			select {
			case out <- success(v):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = u.invoke(ctx, req, emit)
		if err == nil || isCancellation(ctx, err) {
			return
		}

		res := failure[Resp](err)
		if res.Err.Kind == KindUnknown {
			slog.ErrorContext(ctx, "Use case failed",
				"use_case", u.name,
				"dispatcher", u.dispatcher.Name(),
				"error", err)
		} else {
			slog.WarnContext(ctx, "Use case returned domain error",
				"use_case", u.name,
				"kind", res.Err.Kind.String(),
				"error", err)
		}
		select {
		case out <- res:
		case <-ctx.Done():
		}
	}()
	return out
}

func (u *UseCase[Req, Resp]) invoke(ctx context.Context, req Req, emit func(Resp) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", u.name, r)
		}
	}()
	return u.run(ctx, req, emit)
}

// isCancellation reports whether err is the caller cancelling, which is
// never reported as a failure.
func isCancellation(ctx context.Context, err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}
