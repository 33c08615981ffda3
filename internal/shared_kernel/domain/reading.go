package domain

import "time"

// Reading is one active power value emitted for a machine sensor.
type Reading struct {
	Identifier string `json:"identifier" avro:"identifier" msgpack:"identifier"`
	Timestamp  int64  `json:"timestamp" avro:"timestamp" msgpack:"timestamp"`
	Value      int32  `json:"valueInW" avro:"valueInW" msgpack:"valueInW"`
}

func NewReading(identifier string, value int32) Reading {
	return Reading{
		Identifier: identifier,
		Timestamp:  time.Now().UnixMilli(),
		Value:      value,
	}
}
