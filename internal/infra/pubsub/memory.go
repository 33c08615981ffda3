package pubsub

import (
	"context"
	"fmt"
	"sync"
)

const memoryRetention = 1024

// In-memory implementation for local runs and tests
type MemoryPublisherFactory struct {
	broker *MemoryBroker
}

func NewMemoryPublisherFactory() *MemoryPublisherFactory {
	return &MemoryPublisherFactory{
		broker: GetMemoryBroker(),
	}
}

func (f *MemoryPublisherFactory) New(topic Topic, codec Codec) (Publisher, error) {
	return NewMemoryPublisher(f.broker, topic, codec), nil
}

var _ Publisher = (*MemoryPublisher)(nil)

func NewMemoryPublisher(broker *MemoryBroker, topic Topic, codec Codec) *MemoryPublisher {
	return &MemoryPublisher{
		broker: broker,
		topic:  topic,
		codec:  codec,
	}
}

type MemoryPublisher struct {
	broker *MemoryBroker
	topic  Topic
	codec  Codec

	mu     sync.RWMutex
	closed bool
}

func (p *MemoryPublisher) Publish(_ context.Context, key Key, message Message) error {
	return p.PublishAsync(key, message).Err()
}

func (p *MemoryPublisher) PublishAsync(key Key, message Message) *Delivery {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return completedDelivery(ErrPublisherClosed)
	}

	var payload []byte
	if p.codec != nil {
		data, err := p.codec.Encode(message)
		if err != nil {
			return completedDelivery(fmt.Errorf("encoding message: %w", err))
		}
		payload = data
	}

	return completedDelivery(p.broker.Publish(p.topic, key, message, payload))
}

func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// MemoryBroker is a singleton that keeps what every in-memory publisher sent
type MemoryBroker struct {
	topics map[Topic]*memoryTopic
	mu     sync.RWMutex
}

type memoryTopic struct {
	count    int
	messages []MessageEvent
}

type MessageEvent struct {
	Key     Key
	Message Message
	Payload []byte
	Topic   Topic
}

var (
	memoryBroker     *MemoryBroker
	memoryBrokerOnce sync.Once
)

func GetMemoryBroker() *MemoryBroker {
	memoryBrokerOnce.Do(func() {
		memoryBroker = NewMemoryBroker()
	})
	return memoryBroker
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		topics: make(map[Topic]*memoryTopic),
	}
}

// Publish counts the message and retains the most recent ones per topic.
func (b *MemoryBroker) Publish(topic Topic, key Key, message Message, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, exists := b.topics[topic]
	if !exists {
		t = &memoryTopic{}
		b.topics[topic] = t
	}

	t.count++
	t.messages = append(t.messages, MessageEvent{
		Key:     key,
		Message: message,
		Payload: payload,
		Topic:   topic,
	})
	if len(t.messages) > memoryRetention {
		t.messages = t.messages[len(t.messages)-memoryRetention:]
	}

	return nil
}

// Messages returns a copy of the retained messages of a topic, oldest first
func (b *MemoryBroker) Messages(topic Topic) []MessageEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, exists := b.topics[topic]
	if !exists {
		return []MessageEvent{}
	}

	result := make([]MessageEvent, len(t.messages))
	copy(result, t.messages)
	return result
}

// Count returns how many messages were ever published to a topic
func (b *MemoryBroker) Count(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, exists := b.topics[topic]
	if !exists {
		return 0
	}

	return t.count
}

// Reset clears all topics (useful for testing)
func (b *MemoryBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.topics = make(map[Topic]*memoryTopic)
}
