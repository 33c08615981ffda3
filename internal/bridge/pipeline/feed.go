package pipeline

import (
	"context"
	"errors"
	"sync"
)

const DefaultPipeCapacity = 512

var ErrTerminating = errors.New("pipeline is terminating")

// Feed is the producer side of a pipeline. Any number of goroutines may Offer
// elements; Close requests termination and lets downstream stages drain.
type Feed[T any] struct {
	pipe   chan T
	mu     sync.RWMutex
	closed bool
}

func NewFeed[T any](capacity int) *Feed[T] {
	if capacity < 1 {
		capacity = DefaultPipeCapacity
	}
	return &Feed[T]{pipe: make(chan T, capacity)}
}

// Offer blocks while the pipe is full. It fails with ErrTerminating once Close
// was called, or with the context error if ctx ends first.
func (f *Feed[T]) Offer(ctx context.Context, element T) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrTerminating
	}

	select {
	case f.pipe <- element:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting elements. Elements already offered are still
// delivered. Close waits for in-flight Offers, so stages consuming Out must
// keep running until the pipe is closed.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.pipe)
}

func (f *Feed[T]) Out() <-chan T {
	return f.pipe
}
