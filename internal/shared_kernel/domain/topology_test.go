package domain_test

import (
	"encoding/json"
	"fmt"
	"math"

	"sensor-bridge/internal/shared_kernel/domain"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func identifiers(sensors []domain.Sensor) []string {
	result := make([]string, len(sensors))
	for i, s := range sensors {
		result[i] = s.Identifier()
	}
	return result
}

var _ = Describe("SensorRegistry", func() {
	Context("deep hierarchy", func() {
		When("building three nested groups with two sensors", func() {
			var registry domain.SensorRegistry

			BeforeEach(func() {
				var err error
				registry, err = domain.BuildSensorRegistry(domain.HierarchyDeep, 3, 2)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should chain the groups below the top level sensor", func() {
				root := registry.TopLevelSensor()
				Expect(root.Identifier()).To(Equal("group_lvl_0"))
				Expect(identifiers(root.Children())).To(Equal([]string{"group_lvl_1"}))

				lvl1 := root.Children()[0].(*domain.AggregatedSensor)
				Expect(identifiers(lvl1.Children())).To(Equal([]string{"group_lvl_2"}))

				lvl2 := lvl1.Children()[0].(*domain.AggregatedSensor)
				Expect(identifiers(lvl2.Children())).To(Equal([]string{"sensor_0", "sensor_1"}))
			})

			It("should enumerate only the machine sensors", func() {
				Expect(registry.SensorIdentifiers()).To(Equal([]string{"sensor_0", "sensor_1"}))
			})
		})

		DescribeTable("enumerates exactly the configured sensors",
			func(groups, sensors int) {
				registry, err := domain.BuildSensorRegistry(domain.HierarchyDeep, groups, sensors)
				Expect(err).NotTo(HaveOccurred())

				expected := make([]string, sensors)
				for i := range expected {
					expected[i] = fmt.Sprintf("sensor_%d", i)
				}
				Expect(registry.SensorIdentifiers()).To(Equal(expected))
			},
			Entry("single group, no sensors", 1, 0),
			Entry("single group, one sensor", 1, 1),
			Entry("five groups, ten sensors", 5, 10),
			Entry("deep chain", 50, 3),
		)
	})

	Context("full hierarchy", func() {
		It("should thread one counter through the pre-order build", func() {
			registry, err := domain.BuildSensorRegistry(domain.HierarchyFull, 2, 2)
			Expect(err).NotTo(HaveOccurred())

			root := registry.TopLevelSensor()
			Expect(identifiers(root.Children())).To(Equal([]string{"g_1_0", "g_1_3"}))
			first := root.Children()[0].(*domain.AggregatedSensor)
			second := root.Children()[1].(*domain.AggregatedSensor)
			Expect(identifiers(first.Children())).To(Equal([]string{"s_1", "s_2"}))
			Expect(identifiers(second.Children())).To(Equal([]string{"s_4", "s_5"}))

			Expect(registry.SensorIdentifiers()).To(Equal([]string{"s_1", "s_2", "s_4", "s_5"}))
		})

		It("should name leaves s_0 to s_n-1 with a single level", func() {
			registry, err := domain.BuildSensorRegistry(domain.HierarchyFull, 1, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.SensorIdentifiers()).To(Equal([]string{"s_0", "s_1", "s_2", "s_3"}))
		})

		It("should allow a root without children", func() {
			registry, err := domain.BuildSensorRegistry(domain.HierarchyFull, 1, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.TopLevelSensor().Children()).To(BeEmpty())
			Expect(registry.SensorIdentifiers()).To(BeEmpty())
		})

		DescribeTable("has sensors^groups leaves with increasing identifiers",
			func(groups, sensors int) {
				registry, err := domain.BuildSensorRegistry(domain.HierarchyFull, groups, sensors)
				Expect(err).NotTo(HaveOccurred())

				leaves := registry.SensorIdentifiers()
				Expect(leaves).To(HaveLen(int(math.Pow(float64(sensors), float64(groups)))))

				last := -1
				for _, id := range leaves {
					var n int
					_, err := fmt.Sscanf(id, "s_%d", &n)
					Expect(err).NotTo(HaveOccurred())
					Expect(n).To(BeNumerically(">", last))
					last = n
				}
			},
			Entry("2x2", 2, 2),
			Entry("3x3", 3, 3),
			Entry("4x2", 4, 2),
			Entry("2x0", 2, 0),
			Entry("1x7", 1, 7),
		)
	})

	Context("enumeration", func() {
		It("should be repeatable", func() {
			registry, err := domain.BuildSensorRegistry(domain.HierarchyFull, 3, 3)
			Expect(err).NotTo(HaveOccurred())

			first := registry.SensorIdentifiers()
			second := registry.SensorIdentifiers()
			Expect(second).To(Equal(first))

			first[0] = "mutated"
			Expect(registry.SensorIdentifiers()[0]).NotTo(Equal("mutated"))
		})

		It("should keep identifiers unique", func() {
			registry, err := domain.BuildSensorRegistry(domain.HierarchyFull, 3, 4)
			Expect(err).NotTo(HaveOccurred())

			seen := map[string]bool{}
			var walk func(s domain.Sensor)
			walk = func(s domain.Sensor) {
				Expect(seen).NotTo(HaveKey(s.Identifier()))
				seen[s.Identifier()] = true
				if aggregated, ok := s.(*domain.AggregatedSensor); ok {
					for _, child := range aggregated.Children() {
						walk(child)
					}
				}
			}
			walk(registry.TopLevelSensor())
			Expect(seen).To(HaveLen(1 + 4 + 16 + 64))
		})
	})

	Context("validation", func() {
		It("should reject an unknown hierarchy", func() {
			_, err := domain.BuildSensorRegistry(domain.Hierarchy("wide"), 1, 1)
			Expect(err).To(MatchError(domain.ErrInvalidHierarchy))
		})

		It("should reject zero nested groups", func() {
			_, err := domain.BuildSensorRegistry(domain.HierarchyFull, 0, 1)
			Expect(err).To(MatchError(domain.ErrInvalidTopologySize))
		})

		It("should reject negative sensor counts", func() {
			_, err := domain.BuildSensorRegistry(domain.HierarchyDeep, 1, -1)
			Expect(err).To(MatchError(domain.ErrInvalidTopologySize))
		})
	})

	Context("builder", func() {
		It("should default to a single deep sensor", func() {
			registry, err := domain.NewSensorRegistryBuilder().Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.SensorIdentifiers()).To(Equal([]string{"sensor_0"}))
		})

		It("should apply the configured parameters", func() {
			registry, err := domain.NewSensorRegistryBuilder().
				WithHierarchy("full").
				WithNestedGroups(2).
				WithSensors(3).
				Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(registry.SensorIdentifiers()).To(HaveLen(9))
		})

		It("should fail on an invalid hierarchy string", func() {
			_, err := domain.NewSensorRegistryBuilder().WithHierarchy("flat").Build()
			Expect(err).To(MatchError(domain.ErrInvalidHierarchy))
		})
	})

	Context("JSON", func() {
		It("should serialize the tree under topLevelSensor", func() {
			registry, err := domain.BuildSensorRegistry(domain.HierarchyDeep, 2, 1)
			Expect(err).NotTo(HaveOccurred())

			data, err := registry.ToJSON()
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`{
				"topLevelSensor": {
					"identifier": "group_lvl_0",
					"name": "",
					"children": [{
						"identifier": "group_lvl_1",
						"name": "",
						"children": [{"identifier": "sensor_0", "name": ""}]
					}]
				}
			}`))
		})

		It("should keep an empty children list for childless groups", func() {
			registry, err := domain.BuildSensorRegistry(domain.HierarchyFull, 1, 0)
			Expect(err).NotTo(HaveOccurred())

			data, err := json.Marshal(registry)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`{"topLevelSensor": {"identifier": "group_lvl_0", "name": "", "children": []}}`))
		})

		It("should refuse to serialize an empty registry", func() {
			_, err := domain.SensorRegistry{}.ToJSON()
			Expect(err).To(HaveOccurred())
		})
	})
})
