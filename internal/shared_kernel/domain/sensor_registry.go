package domain

import (
	"encoding/json"
	"fmt"
)

// Sensor is a node of a sensor registry, either an *AggregatedSensor or a
// *MachineSensor.
type Sensor interface {
	Identifier() string
	sensor()
}

var _ Sensor = (*AggregatedSensor)(nil)
var _ Sensor = (*MachineSensor)(nil)

type AggregatedSensor struct {
	identifier string
	children   []Sensor
}

func (s *AggregatedSensor) Identifier() string { return s.identifier }
func (s *AggregatedSensor) sensor()            {}

// Children returns a copy of the direct children in creation order.
func (s *AggregatedSensor) Children() []Sensor {
	result := make([]Sensor, len(s.children))
	copy(result, s.children)
	return result
}

func (s *AggregatedSensor) addChildAggregatedSensor(identifier string) *AggregatedSensor {
	child := &AggregatedSensor{identifier: identifier}
	s.children = append(s.children, child)
	return child
}

func (s *AggregatedSensor) addChildMachineSensor(identifier string) *MachineSensor {
	child := &MachineSensor{identifier: identifier}
	s.children = append(s.children, child)
	return child
}

func (s *AggregatedSensor) collectMachineSensors(out []*MachineSensor) []*MachineSensor {
	for _, child := range s.children {
		switch c := child.(type) {
		case *MachineSensor:
			out = append(out, c)
		case *AggregatedSensor:
			out = c.collectMachineSensors(out)
		}
	}
	return out
}

type MachineSensor struct {
	identifier string
}

func (s *MachineSensor) Identifier() string { return s.identifier }
func (s *MachineSensor) sensor()            {}

// SensorRegistry is the immutable topology readings roll up through.
type SensorRegistry struct {
	topLevelSensor *AggregatedSensor
}

func (r SensorRegistry) TopLevelSensor() *AggregatedSensor {
	return r.topLevelSensor
}

// MachineSensors walks the tree depth-first and returns the leaves in the
// order they were created.
func (r SensorRegistry) MachineSensors() []*MachineSensor {
	if r.topLevelSensor == nil {
		return []*MachineSensor{}
	}
	return r.topLevelSensor.collectMachineSensors(make([]*MachineSensor, 0))
}

func (r SensorRegistry) SensorIdentifiers() []string {
	sensors := r.MachineSensors()
	result := make([]string, len(sensors))
	for i, s := range sensors {
		result[i] = s.Identifier()
	}
	return result
}

type sensorJSON struct {
	Identifier string        `json:"identifier"`
	// Generated sensors are unnamed; consumers still expect the key.
	Name       string        `json:"name"`
	Children   *[]sensorJSON `json:"children,omitempty"`
}

type sensorRegistryJSON struct {
	TopLevelSensor sensorJSON `json:"topLevelSensor"`
}

func toSensorJSON(s Sensor) sensorJSON {
	result := sensorJSON{Identifier: s.Identifier()}
	if aggregated, ok := s.(*AggregatedSensor); ok {
		children := make([]sensorJSON, 0, len(aggregated.children))
		for _, child := range aggregated.children {
			children = append(children, toSensorJSON(child))
		}
		result.Children = &children
	}
	return result
}

func (r SensorRegistry) MarshalJSON() ([]byte, error) {
	if r.topLevelSensor == nil {
		return nil, fmt.Errorf("marshaling sensor registry: no top level sensor")
	}
	return json.Marshal(sensorRegistryJSON{TopLevelSensor: toSensorJSON(r.topLevelSensor)})
}

// ToJSON returns the registry in the format consumers of the configuration
// topic expect.
func (r SensorRegistry) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
