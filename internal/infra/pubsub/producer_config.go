package pubsub

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/lovoo/goka"
)

// ProducerTuning carries optional producer settings verbatim from the
// environment. Empty fields keep the client defaults.
type ProducerTuning struct {
	BatchSize    string
	LingerMs     string
	BufferMemory string
}

func parseTuningValue(name, value string) (int, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parsing %s %q: %w", name, value, err)
	}
	if n < 0 {
		return 0, false, fmt.Errorf("parsing %s %q: must not be negative", name, value)
	}
	return n, true, nil
}

// Validate reports whether every set value can be applied.
func (t ProducerTuning) Validate() error {
	return t.Apply(sarama.NewConfig())
}

// MaxChannelBufferSize caps the number of messages a buffer memory budget
// can translate to. sarama allocates one channel of that size per topic and
// per partition.
const MaxChannelBufferSize = 1 << 14

// Apply maps the tuning onto a sarama producer configuration: batch size to
// Producer.Flush.Bytes, linger to Producer.Flush.Frequency and buffer memory
// to ChannelBufferSize. Buffer memory is a byte budget; it becomes the number
// of messages of Producer.MaxMessageBytes that fit in it, between 1 and
// MaxChannelBufferSize.
func (t ProducerTuning) Apply(cfg *sarama.Config) error {
	batchSize, ok, err := parseTuningValue("batch size", t.BatchSize)
	if err != nil {
		return err
	}
	if ok {
		cfg.Producer.Flush.Bytes = batchSize
	}

	lingerMs, ok, err := parseTuningValue("linger ms", t.LingerMs)
	if err != nil {
		return err
	}
	if ok {
		cfg.Producer.Flush.Frequency = time.Duration(lingerMs) * time.Millisecond
	}

	bufferMemory, ok, err := parseTuningValue("buffer memory", t.BufferMemory)
	if err != nil {
		return err
	}
	if ok {
		if bufferMemory == 0 {
			return fmt.Errorf("parsing buffer memory %q: must be positive", t.BufferMemory)
		}
		cfg.ChannelBufferSize = channelBufferSize(bufferMemory, cfg.Producer.MaxMessageBytes)
	}

	return nil
}

func channelBufferSize(bufferMemory, maxMessageBytes int) int {
	if maxMessageBytes <= 0 {
		maxMessageBytes = sarama.NewConfig().Producer.MaxMessageBytes
	}
	return min(max(bufferMemory/maxMessageBytes, 1), MaxChannelBufferSize)
}

// NewProducerConfig returns goka's default sarama configuration with the
// tuning applied.
func NewProducerConfig(clientID string, tuning ProducerTuning) (*sarama.Config, error) {
	cfg := goka.DefaultConfig()
	if clientID != "" {
		cfg.ClientID = clientID
	}
	if err := tuning.Apply(cfg); err != nil {
		return nil, fmt.Errorf("applying producer tuning: %w", err)
	}

	return cfg, nil
}
