package loadgen

import (
	"context"
	"fmt"
	"log/slog"

	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/shared_kernel/domain"
)

const DefaultConfigurationTopic pubsub.Topic = "configuration"

func NewRegistryPublisher(factory pubsub.PublisherFactory, topic pubsub.Topic) *RegistryPublisher {
	if topic == "" {
		topic = DefaultConfigurationTopic
	}
	return &RegistryPublisher{
		factory: factory,
		topic:   topic,
	}
}

// RegistryPublisher announces a sensor registry on the configuration topic.
// Every announcement opens its own handle and closes it once the broker has
// acknowledged the message.
type RegistryPublisher struct {
	factory pubsub.PublisherFactory
	topic   pubsub.Topic
}

func (p *RegistryPublisher) Topic() pubsub.Topic {
	return p.topic
}

func (p *RegistryPublisher) Publish(ctx context.Context, registry domain.SensorRegistry) error {
	payload, err := registry.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing sensor registry: %w", err)
	}

	publisher, err := p.factory.New(p.topic, pubsub.NewStringCodec())
	if err != nil {
		return fmt.Errorf("opening registry publisher: %w", err)
	}

	publishErr := publisher.Publish(ctx, pubsub.Key(domain.EventSensorRegistryChanged), payload)
	closeErr := publisher.Close()
	if publishErr != nil {
		return fmt.Errorf("publishing sensor registry: %w", publishErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing registry publisher: %w", closeErr)
	}

	slog.Info("sensor registry announced",
		slog.String("topic", string(p.topic)),
		slog.Int("bytes", len(payload)))
	return nil
}
