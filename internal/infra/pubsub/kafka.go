package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lovoo/goka"
)

const (
	defaultConnectAttempts int           = 10
	defaultConnectBackoff  time.Duration = 5 * time.Second
)

var ErrKafkaUnreachable = errors.New("kafka brokers unreachable")

type KafkaPublisherOptions struct {
	Brokers         []string
	Topic           Topic
	Codec           Codec
	ClientID        string
	Tuning          ProducerTuning
	ConnectAttempts int
	ConnectBackoff  time.Duration
	// EmitterOptions are appended after the producer options, so a tester
	// passed here replaces the real producer.
	EmitterOptions []goka.EmitterOption
}

var _ Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher is a publisher handle backed by its own goka emitter. Two
// handles never share a producer.
type KafkaPublisher struct {
	emitter *goka.Emitter
	topic   Topic

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(ctx context.Context, opts KafkaPublisherOptions) (*KafkaPublisher, error) {
	if len(opts.Brokers) == 0 && len(opts.EmitterOptions) == 0 {
		return nil, fmt.Errorf("creating kafka publisher: no brokers")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("creating kafka publisher: no codec")
	}

	cfg, err := NewProducerConfig(opts.ClientID, opts.Tuning)
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	attempts := opts.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}
	backoff := opts.ConnectBackoff
	if backoff <= 0 {
		backoff = defaultConnectBackoff
	}

	emitterOpts := []goka.EmitterOption{
		goka.WithEmitterProducerBuilder(goka.ProducerBuilderWithConfig(cfg)),
	}
	if opts.ClientID != "" {
		emitterOpts = append(emitterOpts, goka.WithEmitterClientID(opts.ClientID))
	}
	emitterOpts = append(emitterOpts, opts.EmitterOptions...)

	brokers := strings.Join(opts.Brokers, ",")
	slog.Debug("creating kafka publisher",
		slog.String("topic", string(opts.Topic)),
		slog.String("brokers", brokers),
		slog.String("client_id", opts.ClientID))

	var lastErr error
	for try := 0; try < attempts; try++ {
		emitter, err := goka.NewEmitter(opts.Brokers, goka.Stream(opts.Topic), opts.Codec, emitterOpts...)
		if err == nil {
			return &KafkaPublisher{emitter: emitter, topic: opts.Topic}, nil
		}
		lastErr = err
		slog.Warn("connecting to kafka brokers",
			slog.String("brokers", brokers),
			slog.Int("attempt", try+1),
			slog.String("error", err.Error()))

		if try == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("creating kafka publisher: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrKafkaUnreachable, attempts, lastErr)
}

// Publish emits the message and waits for the broker acknowledgement or for
// ctx to end.
func (p *KafkaPublisher) Publish(ctx context.Context, key Key, message Message) error {
	delivery := p.PublishAsync(key, message)
	select {
	case <-delivery.Done():
		if err := delivery.Err(); err != nil {
			slog.Error("emitting message",
				slog.String("topic", string(p.topic)),
				slog.String("error", err.Error()))
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAsync hands the message to the producer without waiting. The
// returned delivery completes once the broker acknowledged or rejected it.
func (p *KafkaPublisher) PublishAsync(key Key, message Message) *Delivery {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return completedDelivery(ErrPublisherClosed)
	}

	promise, err := p.emitter.Emit(string(key), message)
	if err != nil {
		return completedDelivery(fmt.Errorf("emitting message: %w", err))
	}

	delivery := newDelivery()
	promise.Then(func(err error) {
		delivery.finish(err)
	})
	return delivery
}

// Close flushes pending messages and releases the producer. Later calls are
// no-ops.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.emitter.Finish(); err != nil {
		return fmt.Errorf("closing kafka publisher on %s: %w", p.topic, err)
	}
	return nil
}
