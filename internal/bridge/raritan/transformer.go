package raritan

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"sensor-bridge/internal/shared_kernel/domain"
)

const DefaultSensorID = "activePower"

var (
	ErrSensorNotFound  = errors.New("sensor not found in export")
	ErrMalformedExport = errors.New("malformed raritan export")
)

type export struct {
	Sensors []exportSensor `json:"sensors"`
	Rows    []exportRow    `json:"rows"`
}

type exportSensor struct {
	ID     string `json:"id"`
	Device struct {
		Label string `json:"label"`
	} `json:"device"`
}

type exportRow struct {
	Timestamp *int64         `json:"timestamp"`
	Records   []exportRecord `json:"records"`
}

type exportRecord struct {
	AvgValue *float64 `json:"avgValue"`
}

func NewTransformer(sensorID string) *Transformer {
	if sensorID == "" {
		sensorID = DefaultSensorID
	}
	return &Transformer{sensorID: sensorID}
}

// Transformer turns a Raritan PDU JSON export into one Reading per row for
// the configured sensor column. The reading identifier is the device label.
type Transformer struct {
	sensorID string
}

func (t *Transformer) SensorID() string {
	return t.sensorID
}

func (t *Transformer) Transform(payload []byte) ([]domain.Reading, error) {
	var doc export
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedExport, err)
	}

	column := -1
	for i, s := range doc.Sensors {
		if s.ID == t.sensorID {
			column = i
			break
		}
	}
	if column < 0 {
		return nil, fmt.Errorf("%w: no sensor with id=%s", ErrSensorNotFound, t.sensorID)
	}
	label := doc.Sensors[column].Device.Label

	readings := make([]domain.Reading, 0, len(doc.Rows))
	for i, row := range doc.Rows {
		if row.Timestamp == nil {
			return nil, fmt.Errorf("%w: row %d has no timestamp", ErrMalformedExport, i)
		}
		if column >= len(row.Records) || row.Records[column].AvgValue == nil {
			return nil, fmt.Errorf("%w: row %d has no avgValue for column %d", ErrMalformedExport, i, column)
		}
		readings = append(readings, domain.Reading{
			Identifier: label,
			Timestamp:  *row.Timestamp,
			Value:      toInt32(*row.Records[column].AvgValue),
		})
	}
	return readings, nil
}

// toInt32 truncates toward zero and saturates at the int32 bounds.
func toInt32(v float64) int32 {
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}
