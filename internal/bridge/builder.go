package bridge

import (
	"context"
	"fmt"

	"sensor-bridge/internal/bridge/pipeline"
	"sensor-bridge/internal/shared_kernel/domain"
)

func NewBuilder() *Builder {
	return &Builder{}
}

type Builder struct {
	actions []bridgeHandler
}

type bridgeHandler func(b *Bridge) error

func (b *Builder) WithTransformer(transform pipeline.FlatMapper[[]byte, domain.Reading]) *Builder {
	b.actions = append(b.actions, func(v *Bridge) error {
		v.transform = transform
		return nil
	})
	return b
}

func (b *Builder) WithSender(sender pipeline.Consumer[domain.Reading]) *Builder {
	b.actions = append(b.actions, func(v *Bridge) error {
		v.sender = sender
		return nil
	})
	return b
}

func (b *Builder) WithPipeCapacity(capacity int) *Builder {
	b.actions = append(b.actions, func(v *Bridge) error {
		if capacity < 1 {
			return fmt.Errorf("pipe capacity must be positive, got %d", capacity)
		}
		v.capacity = capacity
		return nil
	})
	return b
}

func (b *Builder) OnStart(action Action) *Builder {
	b.actions = append(b.actions, func(v *Bridge) error {
		v.onStart = append(v.onStart, action)
		return nil
	})
	return b
}

func (b *Builder) OnStop(action Action) *Builder {
	b.actions = append(b.actions, func(v *Bridge) error {
		v.onStop = append(v.onStop, action)
		return nil
	})
	return b
}

// OnStopFunc registers an on-stop action that cannot fail.
func (b *Builder) OnStopFunc(action func()) *Builder {
	return b.OnStop(func(context.Context) error {
		action()
		return nil
	})
}

func (b *Builder) Build() (*Bridge, error) {
	result := &Bridge{
		capacity: pipeline.DefaultPipeCapacity,
		exec:     pipeline.NewExecution(),
	}
	for _, a := range b.actions {
		if err := a(result); err != nil {
			return nil, err
		}
	}
	if result.transform == nil || result.sender == nil {
		return nil, ErrIncomplete
	}

	result.feed = pipeline.NewFeed[[]byte](result.capacity)
	return result, nil
}
