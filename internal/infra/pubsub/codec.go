package pubsub

import (
	"encoding/json"
	"fmt"

	"github.com/lovoo/goka"
	"github.com/lovoo/goka/codec"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec matches goka.Codec so every implementation can back an emitter.
type Codec interface {
	Encode(value interface{}) (data []byte, err error)
	Decode(data []byte) (value interface{}, err error)
}

var (
	_ goka.Codec = Codec(nil)
	_ Codec      = (*JSONCodec[struct{}])(nil)
	_ Codec      = (*MsgpackCodec[struct{}])(nil)
	_ Codec      = (*codec.String)(nil)
)

func NewJSONCodec[T any]() *JSONCodec[T] {
	return &JSONCodec[T]{}
}

type JSONCodec[T any] struct{}

func (c *JSONCodec[T]) Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshaling data: %w", err)
	}

	return data, nil
}

func (c *JSONCodec[T]) Decode(data []byte) (any, error) {
	var instance T
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("unmarshaling data: %w", err)
	}

	return instance, nil
}

func NewMsgpackCodec[T any]() *MsgpackCodec[T] {
	return &MsgpackCodec[T]{}
}

type MsgpackCodec[T any] struct{}

func (c *MsgpackCodec[T]) Encode(value any) ([]byte, error) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshaling msgpack: %w", err)
	}

	return data, nil
}

func (c *MsgpackCodec[T]) Decode(data []byte) (any, error) {
	var instance T
	if err := msgpack.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("unmarshaling msgpack: %w", err)
	}

	return instance, nil
}

// NewStringCodec returns the codec used for plain string payloads such as the
// serialized sensor registry.
func NewStringCodec() Codec {
	return new(codec.String)
}
