package usecase

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Dispatcher is a named, bounded execution pool.
type Dispatcher struct {
	name string
	sem  *semaphore.Weighted
}

func NewDispatcher(name string, size int64) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{name: name, sem: semaphore.NewWeighted(size)}
}

func (d *Dispatcher) Name() string { return d.name }

// Acquire blocks until a slot is free or ctx ends. The returned func
// releases the slot and is safe to call more than once.
func (d *Dispatcher) Acquire(ctx context.Context) (release func(), err error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	done := false
	return func() {
		if !done {
			done = true
			d.sem.Release(1)
		}
	}, nil
}

// Dispatchers groups the CPU-bound and I/O-bound pools.
type Dispatchers struct {
	Default *Dispatcher
	IO      *Dispatcher
}

// NewDispatchers sizes the pools; non-positive sizes fall back to
// GOMAXPROCS for Default and 64 for IO.
func NewDispatchers(defaultSize, ioSize int64) Dispatchers {
	if defaultSize <= 0 {
		defaultSize = int64(runtime.GOMAXPROCS(0))
	}
	if ioSize <= 0 {
		ioSize = 64
	}
	return Dispatchers{
		Default: NewDispatcher("default", defaultSize),
		IO:      NewDispatcher("io", ioSize),
	}
}
