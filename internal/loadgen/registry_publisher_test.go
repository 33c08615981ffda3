package loadgen_test

import (
	"context"
	"errors"
	"time"

	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/loadgen"
	"sensor-bridge/internal/shared_kernel/domain"
	mockpubsub "sensor-bridge/test/unit/doubles/infra/pubsub"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("RegistryPublisher", func() {
	var (
		ctrl      *gomock.Controller
		factory   *mockpubsub.MockPublisherFactory
		publisher *mockpubsub.MockPublisher
		registry  domain.SensorRegistry
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		factory = mockpubsub.NewMockPublisherFactory(ctrl)
		publisher = mockpubsub.NewMockPublisher(ctrl)

		var err error
		registry, err = domain.BuildSensorRegistry(domain.HierarchyDeep, 1, 2)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	It("should default to the configuration topic", func() {
		Expect(loadgen.NewRegistryPublisher(factory, "").Topic()).To(Equal(pubsub.Topic("configuration")))
	})

	It("should send the registry JSON keyed by the event kind and close the handle", func() {
		expected, err := registry.ToJSON()
		Expect(err).NotTo(HaveOccurred())

		gomock.InOrder(
			factory.EXPECT().New(pubsub.Topic("configuration"), gomock.Any()).Return(publisher, nil),
			publisher.EXPECT().Publish(gomock.Any(), pubsub.Key("SENSOR_REGISTRY_CHANGED"), expected).Return(nil),
			publisher.EXPECT().Close().Return(nil),
		)

		err = loadgen.NewRegistryPublisher(factory, "configuration").Publish(context.Background(), registry)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should close the handle when the broker rejects the message", func() {
		brokerErr := errors.New("not leader for partition")
		factory.EXPECT().New(gomock.Any(), gomock.Any()).Return(publisher, nil)
		publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(brokerErr)
		publisher.EXPECT().Close().Return(nil)

		err := loadgen.NewRegistryPublisher(factory, "configuration").Publish(context.Background(), registry)
		Expect(err).To(MatchError(brokerErr))
	})

	It("should fail when no handle can be opened", func() {
		factory.EXPECT().New(gomock.Any(), gomock.Any()).Return(nil, pubsub.ErrKafkaUnreachable)

		err := loadgen.NewRegistryPublisher(factory, "configuration").Publish(context.Background(), registry)
		Expect(err).To(MatchError(pubsub.ErrKafkaUnreachable))
	})

	It("should refuse an empty registry without opening a handle", func() {
		err := loadgen.NewRegistryPublisher(factory, "configuration").Publish(context.Background(), domain.SensorRegistry{})
		Expect(err).To(HaveOccurred())
	})

	It("should encode the payload as a plain string", func() {
		broker := pubsub.NewMemoryBroker()
		factory.EXPECT().New(gomock.Any(), gomock.Any()).DoAndReturn(
			func(topic pubsub.Topic, codec pubsub.Codec) (pubsub.Publisher, error) {
				return pubsub.NewMemoryPublisher(broker, topic, codec), nil
			})

		err := loadgen.NewRegistryPublisher(factory, "configuration").Publish(context.Background(), registry)
		Expect(err).NotTo(HaveOccurred())

		messages := broker.Messages("configuration")
		Expect(messages).To(HaveLen(1))
		Expect(messages[0].Payload).To(MatchJSON(`{
			"topLevelSensor": {
				"identifier": "group_lvl_0",
				"name": "",
				"children": [
					{"identifier": "sensor_0", "name": ""},
					{"identifier": "sensor_1", "name": ""}
				]
			}
		}`))
	})
})

var _ = Describe("RegistryRefresher", func() {
	It("should accept empty, cron and descriptor schedules", func() {
		Expect(loadgen.ValidateSchedule("")).To(Succeed())
		Expect(loadgen.ValidateSchedule("*/5 * * * *")).To(Succeed())
		Expect(loadgen.ValidateSchedule("@every 1m")).To(Succeed())
	})

	It("should reject a malformed schedule", func() {
		Expect(loadgen.ValidateSchedule("every minute")).NotTo(Succeed())

		_, err := loadgen.NewRegistryRefresher("61 * * * *", nil, domain.SensorRegistry{})
		Expect(err).To(HaveOccurred())
	})

	It("should do nothing without a schedule", func() {
		refresher, err := loadgen.NewRegistryRefresher("", nil, domain.SensorRegistry{})
		Expect(err).NotTo(HaveOccurred())
		Expect(refresher.Enabled()).To(BeFalse())
		Expect(refresher.Start(context.Background())).To(Succeed())
		refresher.Stop()
	})

	It("should re-announce the registry on schedule", func() {
		ctrl := gomock.NewController(GinkgoT())
		factory := mockpubsub.NewMockPublisherFactory(ctrl)
		broker := pubsub.NewMemoryBroker()
		factory.EXPECT().New(gomock.Any(), gomock.Any()).DoAndReturn(
			func(topic pubsub.Topic, codec pubsub.Codec) (pubsub.Publisher, error) {
				return pubsub.NewMemoryPublisher(broker, topic, codec), nil
			}).MinTimes(1)

		registry, err := domain.BuildSensorRegistry(domain.HierarchyFull, 2, 2)
		Expect(err).NotTo(HaveOccurred())

		refresher, err := loadgen.NewRegistryRefresher("@every 1s", loadgen.NewRegistryPublisher(factory, "configuration"), registry)
		Expect(err).NotTo(HaveOccurred())
		Expect(refresher.Start(context.Background())).To(Succeed())
		defer refresher.Stop()

		Eventually(func() int { return broker.Count("configuration") }, 5*time.Second, 100*time.Millisecond).
			Should(BeNumerically(">=", 1))
		Expect(broker.Messages("configuration")[0].Key).To(Equal(pubsub.Key("SENSOR_REGISTRY_CHANGED")))
	})
})
