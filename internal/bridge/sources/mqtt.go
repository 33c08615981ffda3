package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sensor-bridge/internal/infra/mqtt"
)

const (
	_mqttQoS          = 1
	_mqttOfferTimeout = 5 * time.Second
)

func NewMQTTSource(client mqtt.Client, topic string, target Offerer) *MQTTSource {
	return &MQTTSource{
		client: client,
		topic:  topic,
		target: target,
	}
}

// MQTTSource feeds every message of one topic into the pipeline. Messages are
// acknowledged once enqueued.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	target Offerer
}

// Start subscribes to the topic. It matches bridge.Action.
func (s *MQTTSource) Start(_ context.Context) error {
	if err := s.client.Subscribe(s.topic, _mqttQoS, s.handle); err != nil {
		return fmt.Errorf("starting mqtt source: %w", err)
	}
	return nil
}

// Stop unsubscribes and disconnects. It matches bridge.Action.
func (s *MQTTSource) Stop(_ context.Context) error {
	defer s.client.Disconnect()
	if err := s.client.Unsubscribe(s.topic); err != nil {
		return fmt.Errorf("stopping mqtt source: %w", err)
	}
	return nil
}

func (s *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), _mqttOfferTimeout)
	defer cancel()

	if err := s.target.Offer(ctx, msg.Payload()); err != nil {
		slog.Warn("dropping mqtt message",
			slog.String("topic", msg.Topic()),
			slog.Int("message_id", int(msg.MessageID())),
			slog.Any("error", err))
		return
	}
	msg.Ack()
}
