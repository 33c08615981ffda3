package avro

import (
	"fmt"

	"sensor-bridge/internal/shared_kernel/domain"

	"github.com/hamba/avro/v2"
)

// ReadingCodec encodes readings as plain Avro binary with a static schema
type ReadingCodec struct {
	schema avro.Schema
}

func NewReadingCodec() (*ReadingCodec, error) {
	schema, err := avro.Parse(ReadingSchema)
	if err != nil {
		return nil, fmt.Errorf("parsing reading schema: %w", err)
	}

	return &ReadingCodec{schema: schema}, nil
}

func toReading(value any) (domain.Reading, error) {
	switch v := value.(type) {
	case domain.Reading:
		return v, nil
	case *domain.Reading:
		if v == nil {
			return domain.Reading{}, fmt.Errorf("nil reading")
		}
		return *v, nil
	default:
		return domain.Reading{}, fmt.Errorf("unsupported message type: %T", value)
	}
}

func (c *ReadingCodec) Encode(value any) ([]byte, error) {
	reading, err := toReading(value)
	if err != nil {
		return nil, err
	}

	data, err := avro.Marshal(c.schema, reading)
	if err != nil {
		return nil, fmt.Errorf("encoding to Avro: %w", err)
	}

	return data, nil
}

func (c *ReadingCodec) Decode(data []byte) (any, error) {
	var reading domain.Reading
	if err := avro.Unmarshal(c.schema, data, &reading); err != nil {
		return nil, fmt.Errorf("decoding from Avro: %w", err)
	}

	return reading, nil
}
