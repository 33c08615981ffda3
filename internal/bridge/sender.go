package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"sensor-bridge/internal/bridge/pipeline"
	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/shared_kernel/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const _meterName = "sensor_bridge"

// KeyAccessor picks the record key of a reading.
type KeyAccessor func(domain.Reading) pubsub.Key

func IdentifierKey(r domain.Reading) pubsub.Key {
	return pubsub.Key(r.Identifier)
}

func NewKafkaRecordSender(publisher pubsub.Publisher, topic pubsub.Topic, key KeyAccessor) (*KafkaRecordSender, error) {
	if key == nil {
		key = IdentifierKey
	}

	meter := otel.Meter(_meterName)
	sentCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s.%s", _meterName, "bridge.records.sent"),
		metric.WithDescription("records acknowledged by the broker"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sent records counter: %w", err)
	}
	failedCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s.%s", _meterName, "bridge.records.failed"),
		metric.WithDescription("records the broker did not accept"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed records counter: %w", err)
	}

	return &KafkaRecordSender{
		publisher:     publisher,
		topic:         topic,
		key:           key,
		sentCounter:   sentCounter,
		failedCounter: failedCounter,
	}, nil
}

var _ pipeline.Consumer[domain.Reading] = &KafkaRecordSender{}

// KafkaRecordSender is the terminal stage of the bridge. It writes every
// reading without waiting for the acknowledgement and closes its publisher
// when the pipeline terminates.
type KafkaRecordSender struct {
	publisher     pubsub.Publisher
	topic         pubsub.Topic
	key           KeyAccessor
	sentCounter   metric.Int64Counter
	failedCounter metric.Int64Counter

	sent      atomic.Int64
	failed    atomic.Int64
	terminate sync.Once
	closeErr  error
}

func (s *KafkaRecordSender) Write(r domain.Reading) *pubsub.Delivery {
	return s.publisher.PublishAsync(s.key(r), r).Then(s.record)
}

func (s *KafkaRecordSender) record(err error) {
	attrs := metric.WithAttributes(attribute.String("topic", string(s.topic)))
	if err != nil {
		s.failed.Add(1)
		s.failedCounter.Add(context.Background(), 1, attrs)
		slog.Debug("record not delivered", slog.String("topic", string(s.topic)), slog.Any("error", err))
		return
	}
	s.sent.Add(1)
	s.sentCounter.Add(context.Background(), 1, attrs)
}

func (s *KafkaRecordSender) Execute(r domain.Reading) {
	_ = s.Write(r)
}

func (s *KafkaRecordSender) OnTerminating() {
	if err := s.Terminate(); err != nil {
		slog.Error("closing record sender", slog.Any("error", err))
	}
}

// Terminate closes the publisher, flushing buffered records. Only the first
// call has an effect.
func (s *KafkaRecordSender) Terminate() error {
	s.terminate.Do(func() {
		s.closeErr = s.publisher.Close()
	})
	return s.closeErr
}

// Sent is the number of records acknowledged so far.
func (s *KafkaRecordSender) Sent() int64 { return s.sent.Load() }

// Failed is the number of records the broker refused.
func (s *KafkaRecordSender) Failed() int64 { return s.failed.Load() }
