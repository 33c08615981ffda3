package pubsub

import "time"

const EnvironmentLocal = "local"

// Factory creates the appropriate pubsub implementation based on environment
type Factory struct {
	publisherFactory PublisherFactory
}

// NewFactory creates a new factory with the appropriate implementation
func NewFactory(opts FactoryOptions) *Factory {
	if opts.Environment == EnvironmentLocal {
		return &Factory{
			publisherFactory: NewMemoryPublisherFactory(),
		}
	}

	return &Factory{
		publisherFactory: NewKafkaPublisherFactory(KafkaPublisherFactoryOptions{
			Brokers:         opts.KafkaBrokers,
			ClientID:        opts.ClientID,
			Tuning:          opts.Tuning,
			ConnectAttempts: opts.ConnectAttempts,
			ConnectBackoff:  opts.ConnectBackoff,
		}),
	}
}

type FactoryOptions struct {
	Environment     string
	KafkaBrokers    []string
	ClientID        string
	Tuning          ProducerTuning
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// GetPublisherFactory returns the configured publisher factory
func (f *Factory) GetPublisherFactory() PublisherFactory {
	return f.publisherFactory
}

// NewPublisher opens a new publisher handle for the given topic and codec
func (f *Factory) NewPublisher(topic Topic, codec Codec) (Publisher, error) {
	return f.publisherFactory.New(topic, codec)
}
