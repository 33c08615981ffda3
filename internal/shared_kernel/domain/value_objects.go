package domain

import (
	"errors"
	"fmt"
)

type Hierarchy string

const (
	HierarchyDeep Hierarchy = "deep"
	HierarchyFull Hierarchy = "full"
)

var ErrInvalidHierarchy = errors.New("invalid hierarchy")

func ParseHierarchy(value string) (Hierarchy, error) {
	switch h := Hierarchy(value); h {
	case HierarchyDeep, HierarchyFull:
		return h, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidHierarchy, value)
	}
}

func (vo Hierarchy) String() string {
	return string(vo)
}

// Event is the kind of a message published on the configuration topic.
type Event string

const (
	EventSensorRegistryChanged Event = "SENSOR_REGISTRY_CHANGED"
)

func (vo Event) String() string {
	return string(vo)
}
