package pubsub

import (
	"context"
	"errors"
)

//go:generate mockgen -source=pubsub.go -destination=../../../test/unit/doubles/infra/pubsub/pubsub_mock.go -package=pubsub -mock_names=PublisherFactory=MockPublisherFactory,Publisher=MockPublisher

type PublisherFactory interface {
	New(Topic, Codec) (Publisher, error)
}

// Publisher is a handle on an open producer session. A handle is meant to be
// driven by a small fixed set of goroutines; it owns its buffering state.
type Publisher interface {
	// Publish sends message and waits for the broker acknowledgement.
	Publish(context.Context, Key, Message) error
	// PublishAsync enqueues message and returns immediately. Callers that do
	// not care about the outcome may discard the returned Delivery.
	PublishAsync(Key, Message) *Delivery
	Close() error
}

type Key string
type Message any
type Topic string

var ErrPublisherClosed = errors.New("publisher closed")
