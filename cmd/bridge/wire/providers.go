package wire

import (
	"context"

	"sensor-bridge/cmd/config"
	"sensor-bridge/internal/bridge"
	"sensor-bridge/internal/bridge/raritan"
	"sensor-bridge/internal/bridge/sources"
	"sensor-bridge/internal/infra/mqtt"
	"sensor-bridge/internal/infra/node"
	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/shared_kernel/codecs"
)

func provideAppConfig() config.AppConfig {
	return config.LoadConfig()
}

func providePubSubFactory(cfg config.AppConfig) *pubsub.Factory {
	return pubsub.NewFactory(pubsub.FactoryOptions{
		Environment:  cfg.General.Environment,
		KafkaBrokers: cfg.Kafka.Brokers,
		ClientID:     node.ClientID("bridge", ""),
		Tuning: pubsub.ProducerTuning{
			BatchSize:    cfg.Kafka.BatchSize,
			LingerMs:     cfg.Kafka.LingerMs,
			BufferMemory: cfg.Kafka.BufferMemory,
		},
		ConnectAttempts: cfg.Kafka.ConnectAttempts,
	})
}

func providePublisherFactory(factory *pubsub.Factory) pubsub.PublisherFactory {
	return factory.GetPublisherFactory()
}

func provideReadingCodec(cfg config.AppConfig) (pubsub.Codec, error) {
	return codecs.NewReadingCodec(cfg.Kafka.Codec, cfg.Kafka.InputTopic, cfg.Kafka.SchemaRegistry)
}

func provideRecordSender(cfg config.AppConfig, factory pubsub.PublisherFactory, codec pubsub.Codec) (*bridge.KafkaRecordSender, error) {
	topic := pubsub.Topic(cfg.Kafka.InputTopic)
	publisher, err := factory.New(topic, codec)
	if err != nil {
		return nil, err
	}
	return bridge.NewKafkaRecordSender(publisher, topic, bridge.IdentifierKey)
}

func provideTransformer(cfg config.AppConfig) *raritan.Transformer {
	return raritan.NewTransformer(cfg.Bridge.SensorID)
}

// provideMQTTClient returns nil when no MQTT source is configured.
func provideMQTTClient(cfg config.AppConfig) (mqtt.Client, error) {
	if !cfg.MQTTClient.Enabled() {
		return nil, nil
	}
	clientID := cfg.MQTTClient.ClientID
	if clientID == "" {
		clientID = node.ClientID("bridge", "mqtt")
	}
	return mqtt.NewSimpleClient(mqtt.SimpleClientOpts{
		Broker:   cfg.MQTTClient.Broker,
		ClientID: clientID,
		Username: cfg.MQTTClient.Username,
		Password: cfg.MQTTClient.Password, //pragma: allowlist secret
	})
}

// provideBridge wires the Raritan pipeline. The MQTT source needs the bridge
// as its target, so it is created after Build and hooked in via closures.
func provideBridge(cfg config.AppConfig, transformer *raritan.Transformer, sender *bridge.KafkaRecordSender, client mqtt.Client) (*bridge.Bridge, error) {
	builder := bridge.NewBuilder().
		WithTransformer(transformer.Transform).
		WithSender(sender).
		WithPipeCapacity(cfg.Bridge.PipeCapacity)

	var source *sources.MQTTSource
	if client != nil {
		builder.
			OnStart(func(ctx context.Context) error { return source.Start(ctx) }).
			OnStop(func(ctx context.Context) error { return source.Stop(ctx) })
	}

	b, err := builder.Build()
	if err != nil {
		return nil, err
	}
	if client != nil {
		source = sources.NewMQTTSource(client, cfg.MQTTClient.Topic, b)
	}
	return b, nil
}
