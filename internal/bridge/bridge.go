package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"sensor-bridge/internal/bridge/pipeline"
	"sensor-bridge/internal/shared_kernel/domain"
)

var (
	ErrNotStarted     = errors.New("bridge not started")
	ErrAlreadyStarted = errors.New("bridge already started")
	ErrIncomplete     = errors.New("bridge needs a transformer and a sender")
)

// Action is a hook run when the bridge starts or stops.
type Action func(context.Context) error

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Bridge moves raw payloads through a transformer into a record sender.
// Payloads enter through Offer; Stop lets the pipeline drain.
type Bridge struct {
	feed      *pipeline.Feed[[]byte]
	exec      *pipeline.Execution
	transform pipeline.FlatMapper[[]byte, domain.Reading]
	sender    pipeline.Consumer[domain.Reading]
	capacity  int
	onStart   []Action
	onStop    []Action

	mu    sync.Mutex
	state state
}

// Start runs the on-start actions in order and then launches the pipeline
// without blocking. A failing action aborts the start.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateIdle {
		return ErrAlreadyStarted
	}

	for _, action := range b.onStart {
		if err := action(ctx); err != nil {
			return fmt.Errorf("running on-start action: %w", err)
		}
	}

	readings := pipeline.FlatMap(b.exec, b.feed.Out(), b.capacity, b.transform)
	pipeline.Sink(b.exec, readings, b.sender)
	b.state = stateRunning

	slog.Info("bridge started", slog.Int("pipe_capacity", b.capacity))
	return nil
}

// Offer enqueues a payload. It blocks while the pipe is full.
func (b *Bridge) Offer(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	current := b.state
	b.mu.Unlock()

	switch current {
	case stateIdle:
		return ErrNotStarted
	case stateStopped:
		return pipeline.ErrTerminating
	}
	return b.feed.Offer(ctx, payload)
}

// Stop requests termination of the pipeline and runs every on-stop action
// concurrently. It returns once the pipeline has drained and all actions
// have finished, or when ctx ends.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	previous := b.state
	b.state = stateStopped
	b.mu.Unlock()

	if previous == stateStopped {
		return nil
	}

	b.feed.Close()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, action := range b.onStop {
		wg.Add(1)
		go func(action Action) {
			defer wg.Done()
			if err := action(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("running on-stop action: %w", err))
				mu.Unlock()
			}
		}(action)
	}

	var drainErr error
	if previous == stateRunning {
		select {
		case <-b.exec.Terminated():
		case <-ctx.Done():
			drainErr = fmt.Errorf("waiting for pipeline termination: %w", ctx.Err())
		}
	} else {
		b.sender.OnTerminating()
	}

	wg.Wait()
	slog.Info("bridge stopped")
	return errors.Join(append(errs, drainErr)...)
}
