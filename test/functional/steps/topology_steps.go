package steps

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"sensor-bridge/internal/shared_kernel/domain"
)

func (fc *FeatureContext) aTopologyWithNestedGroupsAndSensors(hierarchy string, groups, sensors int) error {
	fc.registry, fc.buildErr = domain.NewSensorRegistryBuilder().
		WithHierarchy(hierarchy).
		WithNestedGroups(groups).
		WithSensors(sensors).
		Build()
	return nil
}

func (fc *FeatureContext) theMachineSensorsShouldBe(expected string) error {
	if fc.buildErr != nil {
		return fc.buildErr
	}
	actual := fc.registry.SensorIdentifiers()
	if !slices.Equal(actual, splitList(expected)) {
		return fmt.Errorf("expected machine sensors %q, got %q", expected, strings.Join(actual, ", "))
	}
	return nil
}

func (fc *FeatureContext) theTopLevelSensorShouldBe(expected string) error {
	if fc.buildErr != nil {
		return fc.buildErr
	}
	if actual := fc.registry.TopLevelSensor().Identifier(); actual != expected {
		return fmt.Errorf("expected top level sensor %q, got %q", expected, actual)
	}
	return nil
}

func (fc *FeatureContext) theTopLevelSensorShouldHaveTheChildren(expected string) error {
	if fc.buildErr != nil {
		return fc.buildErr
	}
	children := fc.registry.TopLevelSensor().Children()
	actual := make([]string, len(children))
	for i, c := range children {
		actual[i] = c.Identifier()
	}
	if !slices.Equal(actual, splitList(expected)) {
		return fmt.Errorf("expected children %q, got %q", expected, strings.Join(actual, ", "))
	}
	return nil
}

func (fc *FeatureContext) thereShouldBeMachineSensors(expected int) error {
	if fc.buildErr != nil {
		return fc.buildErr
	}
	if actual := len(fc.registry.MachineSensors()); actual != expected {
		return fmt.Errorf("expected %d machine sensors, got %d", expected, actual)
	}
	return nil
}

func (fc *FeatureContext) buildingTheTopologyShouldFail() error {
	if fc.buildErr == nil {
		return errors.New("expected the topology build to fail")
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
