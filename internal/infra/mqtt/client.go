package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	_defaultConnectTimeout = 5 * time.Second
	_subscribeTimeout      = 5 * time.Second
	_disconnectQuiesceMs   = 5 * 1000
)

//go:generate mockgen -source=client.go -destination=../../../test/unit/doubles/infra/mqtt/client_mock.go -package=mqtt

var ErrNotConnected = errors.New("mqtt client not connected")

type Client interface {
	Subscribe(topic string, qos byte, callback MessageHandler) error
	Unsubscribe(topic string) error
	Disconnect()
}

type SimpleClientOpts struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// ClientOptions maps the options onto paho, with auto reconnect enabled.
func (o SimpleClientOpts) ClientOptions() *paho.ClientOptions {
	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = _defaultConnectTimeout
	}

	return paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetKeepAlive(10 * time.Second).
		SetConnectTimeout(timeout)
}

// subscription tracks a topic subscription for reconnection recovery
type subscription struct {
	topic    string
	qos      byte
	callback MessageHandler
}

func NewSimpleClient(opts SimpleClientOpts) (*SimpleClient, error) {
	simpleClient := &SimpleClient{
		subscriptions: make(map[string]subscription),
	}

	pahoOpts := opts.ClientOptions().
		SetOnConnectHandler(func(client paho.Client) {
			slog.Info("connected to MQTT broker", slog.String("broker", opts.Broker))
			simpleClient.resubscribeAll(client)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Error("connection lost to MQTT broker", slog.String("error", err.Error()))
		})

	client := paho.NewClient(pahoOpts)
	token := client.Connect()
	if !token.WaitTimeout(pahoOpts.ConnectTimeout) {
		return nil, fmt.Errorf("connecting to %s: %w", opts.Broker, ErrNotConnected)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("connecting to %s: %w", opts.Broker, token.Error())
	}

	simpleClient.client = client
	return simpleClient, nil
}

var _ Client = (*SimpleClient)(nil)

type SimpleClient struct {
	client        paho.Client
	subscriptions map[string]subscription
	mu            sync.RWMutex
}

// resubscribeAll re-establishes all subscriptions after reconnection
func (c *SimpleClient) resubscribeAll(client paho.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.subscriptions) == 0 {
		return
	}

	slog.Info("restoring MQTT subscriptions after reconnection", slog.Int("count", len(c.subscriptions)))
	for topic, sub := range c.subscriptions {
		token := client.Subscribe(sub.topic, sub.qos, c.pahoCallback(sub.callback))
		token.WaitTimeout(_subscribeTimeout)
		if token.Error() != nil {
			slog.Error("failed to restore subscription after reconnection",
				slog.String("topic", topic), slog.String("error", token.Error().Error()))
		}
	}
}

func (c *SimpleClient) pahoCallback(callback MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		callback(c, msg)
	}
}

func (c *SimpleClient) Subscribe(topic string, qos byte, callback MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[topic] = subscription{
		topic:    topic,
		qos:      qos,
		callback: callback,
	}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, c.pahoCallback(callback))
	token.WaitTimeout(_subscribeTimeout)
	if token.Error() != nil {
		c.mu.Lock()
		delete(c.subscriptions, topic)
		c.mu.Unlock()
		return fmt.Errorf("subscribing to topic %s: %w", topic, token.Error())
	}

	slog.Info("subscribed to MQTT topic", slog.String("topic", topic), slog.Int("qos", int(qos)))
	return nil
}

func (c *SimpleClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()

	token := c.client.Unsubscribe(topic)
	token.WaitTimeout(_subscribeTimeout)
	if token.Error() != nil {
		return fmt.Errorf("unsubscribing from topic %s: %w", topic, token.Error())
	}
	return nil
}

type MessageHandler func(Client, Message)

type Message interface {
	Topic() string
	MessageID() uint16
	Payload() []byte
	Ack()
}

func (c *SimpleClient) Disconnect() {
	c.mu.Lock()
	c.subscriptions = make(map[string]subscription)
	c.mu.Unlock()

	c.client.Disconnect(_disconnectQuiesceMs)
}
