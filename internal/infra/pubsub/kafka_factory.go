package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/lovoo/goka"
)

var _ PublisherFactory = (*KafkaPublisherFactory)(nil)

type KafkaPublisherFactoryOptions struct {
	Brokers         []string
	ClientID        string
	Tuning          ProducerTuning
	ConnectAttempts int
	ConnectBackoff  time.Duration
	EmitterOptions  []goka.EmitterOption
}

func NewKafkaPublisherFactory(opts KafkaPublisherFactoryOptions) *KafkaPublisherFactory {
	return &KafkaPublisherFactory{opts: opts}
}

// KafkaPublisherFactory opens an independent emitter on every call to New.
type KafkaPublisherFactory struct {
	opts KafkaPublisherFactoryOptions
}

func (f *KafkaPublisherFactory) New(topic Topic, codec Codec) (Publisher, error) {
	publisher, err := NewKafkaPublisher(context.Background(), KafkaPublisherOptions{
		Brokers:         f.opts.Brokers,
		Topic:           topic,
		Codec:           codec,
		ClientID:        f.opts.ClientID,
		Tuning:          f.opts.Tuning,
		ConnectAttempts: f.opts.ConnectAttempts,
		ConnectBackoff:  f.opts.ConnectBackoff,
		EmitterOptions:  f.opts.EmitterOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating publisher: %w", err)
	}

	return publisher, nil
}
