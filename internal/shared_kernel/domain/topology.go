package domain

import (
	"errors"
	"fmt"
)

const TopLevelSensorIdentifier = "group_lvl_0"

var ErrInvalidTopologySize = errors.New("invalid topology size")

func NewSensorRegistryBuilder() *sensorRegistryBuilder {
	return &sensorRegistryBuilder{}
}

type sensorRegistryBuilder struct {
	actions []sensorRegistryHandler
}

type topologyParameters struct {
	hierarchy       Hierarchy
	numNestedGroups int
	numSensors      int
}

type sensorRegistryHandler func(v *topologyParameters) error

func (b *sensorRegistryBuilder) WithHierarchy(value string) *sensorRegistryBuilder {
	b.actions = append(b.actions, func(p *topologyParameters) error {
		hierarchy, err := ParseHierarchy(value)
		if err != nil {
			return err
		}
		p.hierarchy = hierarchy
		return nil
	})
	return b
}

func (b *sensorRegistryBuilder) WithNestedGroups(value int) *sensorRegistryBuilder {
	b.actions = append(b.actions, func(p *topologyParameters) error {
		if value < 1 {
			return fmt.Errorf("%w: nested groups must be at least 1, got %d", ErrInvalidTopologySize, value)
		}
		p.numNestedGroups = value
		return nil
	})
	return b
}

func (b *sensorRegistryBuilder) WithSensors(value int) *sensorRegistryBuilder {
	b.actions = append(b.actions, func(p *topologyParameters) error {
		if value < 0 {
			return fmt.Errorf("%w: sensors must not be negative, got %d", ErrInvalidTopologySize, value)
		}
		p.numSensors = value
		return nil
	})
	return b
}

func (b *sensorRegistryBuilder) Build() (SensorRegistry, error) {
	params := topologyParameters{
		hierarchy:       HierarchyDeep,
		numNestedGroups: 1,
		numSensors:      1,
	}
	for _, a := range b.actions {
		if err := a(&params); err != nil {
			return SensorRegistry{}, err
		}
	}

	return BuildSensorRegistry(params.hierarchy, params.numNestedGroups, params.numSensors)
}

// BuildSensorRegistry constructs the topology for the given shape.
//
// deep: a chain of numNestedGroups groups with numSensors leaves under the
// innermost one. full: a complete tree of depth numNestedGroups and
// branching factor numSensors.
func BuildSensorRegistry(hierarchy Hierarchy, numNestedGroups, numSensors int) (SensorRegistry, error) {
	if numNestedGroups < 1 {
		return SensorRegistry{}, fmt.Errorf("%w: nested groups must be at least 1, got %d", ErrInvalidTopologySize, numNestedGroups)
	}
	if numSensors < 0 {
		return SensorRegistry{}, fmt.Errorf("%w: sensors must not be negative, got %d", ErrInvalidTopologySize, numSensors)
	}

	root := &AggregatedSensor{identifier: TopLevelSensorIdentifier}
	switch hierarchy {
	case HierarchyDeep:
		buildDeep(root, numNestedGroups, numSensors)
	case HierarchyFull:
		addChildren(root, numSensors, 1, numNestedGroups, 0)
	default:
		return SensorRegistry{}, fmt.Errorf("%w: %q", ErrInvalidHierarchy, string(hierarchy))
	}

	return SensorRegistry{topLevelSensor: root}, nil
}

func buildDeep(root *AggregatedSensor, numNestedGroups, numSensors int) {
	last := root
	for lvl := 1; lvl < numNestedGroups; lvl++ {
		last = last.addChildAggregatedSensor(fmt.Sprintf("group_lvl_%d", lvl))
	}
	for s := 0; s < numSensors; s++ {
		last.addChildMachineSensor(fmt.Sprintf("sensor_%d", s))
	}
}

// addChildren attaches numChildren nodes to parent and recurses until maxLvl.
// nextID is the first free identifier; the returned value is the next free one
// after the whole subtree has been built. The root takes no identifier.
func addChildren(parent *AggregatedSensor, numChildren, lvl, maxLvl, nextID int) int {
	for c := 0; c < numChildren; c++ {
		if lvl == maxLvl {
			parent.addChildMachineSensor(fmt.Sprintf("s_%d", nextID))
			nextID++
			continue
		}
		group := parent.addChildAggregatedSensor(fmt.Sprintf("g_%d_%d", lvl, nextID))
		nextID++
		nextID = addChildren(group, numChildren, lvl+1, maxLvl, nextID)
	}
	return nextID
}
