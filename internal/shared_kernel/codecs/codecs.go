package codecs

import (
	"errors"
	"fmt"
	"strings"

	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/shared_kernel/avro"
	"sensor-bridge/internal/shared_kernel/domain"

	"github.com/riferrei/srclient"
)

const (
	Avro      = "avro"
	JSON      = "json"
	Msgpack   = "msgpack"
	Confluent = "confluent"
)

var ErrUnknownCodec = errors.New("unknown codec")

// NewReadingCodec returns the value codec for readings sent to topic.
func NewReadingCodec(kind, topic, schemaRegistryURL string) (pubsub.Codec, error) {
	switch strings.ToLower(kind) {
	case Avro:
		return avro.NewReadingCodec()
	case JSON:
		return pubsub.NewJSONCodec[domain.Reading](), nil
	case Msgpack:
		return pubsub.NewMsgpackCodec[domain.Reading](), nil
	case Confluent:
		if schemaRegistryURL == "" {
			return nil, fmt.Errorf("confluent codec: no schema registry url")
		}
		return avro.NewConfluentReadingCodec(topic, srclient.CreateSchemaRegistryClient(schemaRegistryURL), nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, kind)
	}
}
