package avro

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"sensor-bridge/internal/infra/cache"
	"sensor-bridge/internal/shared_kernel/domain"

	"github.com/linkedin/goavro/v2"
	"github.com/riferrei/srclient"
)

const (
	_defaultSchemaCacheTTL = 5 * time.Minute
	_defaultCodecCacheTTL  = 5 * time.Minute

	confluentMagicByte  byte = 0
	confluentHeaderSize      = 5
)

// SchemaRegistry defines the interface for schema registry operations
type SchemaRegistry interface {
	GetLatestSchema(subject string) (*srclient.Schema, error)
	CreateSchema(subject string, schema string, schemaType srclient.SchemaType, references ...srclient.Reference) (*srclient.Schema, error)
	GetSchema(schemaID int) (*srclient.Schema, error)
}

// ConfluentReadingCodec encodes readings in the Confluent wire format: a zero
// magic byte, the big-endian schema id, then the Avro body. The schema is
// looked up (or registered) under "<topic>-value".
type ConfluentReadingCodec struct {
	schemaRegistry SchemaRegistry
	subject        string
	cache          cache.Cache
}

func NewConfluentReadingCodec(topic string, schemaRegistry SchemaRegistry, c cache.Cache) (*ConfluentReadingCodec, error) {
	if schemaRegistry == nil {
		return nil, fmt.Errorf("creating confluent codec: no schema registry")
	}
	if c == nil {
		rc, err := cache.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating schema cache: %w", err)
		}
		c = rc
	}

	return &ConfluentReadingCodec{
		schemaRegistry: schemaRegistry,
		subject:        topic + "-value",
		cache:          c,
	}, nil
}

func (c *ConfluentReadingCodec) Subject() string {
	return c.subject
}

// schemaID returns the id of the latest schema for the subject, registering
// ReadingSchema when the subject is unknown.
func (c *ConfluentReadingCodec) schemaID() (int, error) {
	value, err := c.cache.GetOrSet(context.Background(), "subject_"+c.subject, _defaultSchemaCacheTTL, func() (any, error) {
		registered, err := c.schemaRegistry.GetLatestSchema(c.subject)
		if err == nil && registered != nil {
			return registered.ID(), nil
		}

		created, err := c.schemaRegistry.CreateSchema(c.subject, ReadingSchema, srclient.Avro)
		if err != nil {
			return nil, fmt.Errorf("registering schema: %w", err)
		}
		return created.ID(), nil
	})
	if err != nil {
		return 0, err
	}

	return value.(int), nil
}

func (c *ConfluentReadingCodec) codecByID(schemaID int) (*goavro.Codec, error) {
	value, err := c.cache.GetOrSet(context.Background(), fmt.Sprintf("schema_%d", schemaID), _defaultCodecCacheTTL, func() (any, error) {
		schema, err := c.schemaRegistry.GetSchema(schemaID)
		if err != nil {
			return nil, fmt.Errorf("fetching schema from registry: %w", err)
		}
		codec, err := goavro.NewCodec(schema.Schema())
		if err != nil {
			return nil, fmt.Errorf("creating codec from schema: %w", err)
		}
		return codec, nil
	})
	if err != nil {
		return nil, err
	}

	return value.(*goavro.Codec), nil
}

func (c *ConfluentReadingCodec) Encode(value any) ([]byte, error) {
	reading, err := toReading(value)
	if err != nil {
		return nil, err
	}

	schemaID, err := c.schemaID()
	if err != nil {
		return nil, fmt.Errorf("getting schema ID: %w", err)
	}

	codec, err := c.codecByID(schemaID)
	if err != nil {
		return nil, fmt.Errorf("getting codec by schema ID: %w", err)
	}

	result := make([]byte, confluentHeaderSize, confluentHeaderSize+32)
	result[0] = confluentMagicByte
	binary.BigEndian.PutUint32(result[1:confluentHeaderSize], uint32(schemaID))

	result, err = codec.BinaryFromNative(result, map[string]any{
		"identifier": reading.Identifier,
		"timestamp":  reading.Timestamp,
		"valueInW":   reading.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding to Avro: %w", err)
	}

	return result, nil
}

func (c *ConfluentReadingCodec) Decode(data []byte) (any, error) {
	if len(data) < confluentHeaderSize {
		return nil, fmt.Errorf("invalid Avro data: too short")
	}
	if data[0] != confluentMagicByte {
		return nil, fmt.Errorf("invalid magic byte: expected 0, got %d", data[0])
	}
	schemaID := int(binary.BigEndian.Uint32(data[1:confluentHeaderSize]))

	codec, err := c.codecByID(schemaID)
	if err != nil {
		return nil, fmt.Errorf("getting codec by schema ID: %w", err)
	}

	native, _, err := codec.NativeFromBinary(data[confluentHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("decoding Avro data: %w", err)
	}

	record, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decoding Avro data: unexpected %T", native)
	}

	return fromNative(record)
}

func fromNative(record map[string]any) (domain.Reading, error) {
	identifier, ok := record["identifier"].(string)
	if !ok {
		return domain.Reading{}, fmt.Errorf("decoding Avro data: missing identifier")
	}
	timestamp, ok := record["timestamp"].(int64)
	if !ok {
		return domain.Reading{}, fmt.Errorf("decoding Avro data: missing timestamp")
	}
	value, ok := record["valueInW"].(int32)
	if !ok {
		return domain.Reading{}, fmt.Errorf("decoding Avro data: missing valueInW")
	}

	return domain.Reading{Identifier: identifier, Timestamp: timestamp, Value: value}, nil
}
