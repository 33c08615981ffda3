package loadgen_test

import (
	"context"
	"sync"
	"time"

	"sensor-bridge/internal/infra/async"
	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/loadgen"
	"sensor-bridge/internal/shared_kernel/domain"
	mockpubsub "sensor-bridge/test/unit/doubles/infra/pubsub"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Generator", func() {
	var (
		ctrl     *gomock.Controller
		factory  *mockpubsub.MockPublisherFactory
		config   *pubsub.MemoryBroker
		data     *pubsub.MemoryBroker
		handleA  pubsub.Publisher
		handleB  pubsub.Publisher
		registry domain.SensorRegistry
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		factory = mockpubsub.NewMockPublisherFactory(ctrl)
		config = pubsub.NewMemoryBroker()
		data = pubsub.NewMemoryBroker()
		handleA = pubsub.NewMemoryPublisher(data, inputTopic, pubsub.NewJSONCodec[domain.Reading]())
		handleB = pubsub.NewMemoryPublisher(data, inputTopic, pubsub.NewJSONCodec[domain.Reading]())

		var err error
		registry, err = domain.BuildSensorRegistry(domain.HierarchyDeep, 2, 3)
		Expect(err).NotTo(HaveOccurred())
	})

	newGenerator := func(opts loadgen.GeneratorOptions, active bool) (*loadgen.Generator, *loadgen.PublisherPool) {
		pool := loadgen.NewPublisherPool(handleA, handleB, registry.SensorIdentifiers(), loadgen.PoolOptions{
			Threads: 2,
			Value:   7,
			Active:  active,
		})
		announcer := loadgen.NewRegistryPublisher(factory, "configuration")
		return loadgen.NewGenerator(registry, announcer, nil, pool, []pubsub.Publisher{handleA, handleB}, opts), pool
	}

	run := func(ctx context.Context, worker async.Worker) *sync.WaitGroup {
		var wg sync.WaitGroup
		wg.Add(1)
		go worker.Run(ctx, wg.Done)
		return &wg
	}

	It("should announce the registry before any reading is sent", func() {
		sentBeforeAnnouncement := -1
		factory.EXPECT().New(pubsub.Topic("configuration"), gomock.Any()).DoAndReturn(
			func(topic pubsub.Topic, codec pubsub.Codec) (pubsub.Publisher, error) {
				sentBeforeAnnouncement = data.Count(inputTopic)
				return pubsub.NewMemoryPublisher(config, topic, codec), nil
			})

		generator, _ := newGenerator(loadgen.GeneratorOptions{SendRegistry: true, GracePeriod: 10 * time.Millisecond}, true)
		ctx, cancel := context.WithCancel(context.Background())
		wg := run(ctx, generator)

		Eventually(func() int { return data.Count(inputTopic) }).Should(BeNumerically(">", 0))
		cancel()
		wg.Wait()
		generator.Shutdown()

		Expect(sentBeforeAnnouncement).To(BeZero())
		Expect(config.Count("configuration")).To(Equal(1))
		Expect(config.Messages("configuration")[0].Key).To(Equal(pubsub.Key(domain.EventSensorRegistryChanged)))
	})

	It("should skip the announcement when disabled", func() {
		generator, pool := newGenerator(loadgen.GeneratorOptions{GracePeriod: time.Hour}, false)
		ctx, cancel := context.WithCancel(context.Background())
		wg := run(ctx, generator)

		Eventually(func() int64 { return pool.Workers()[0].Passes() }).Should(BeNumerically(">", 0))
		cancel()
		wg.Wait()

		Expect(data.Count(inputTopic)).To(BeZero())
	})

	It("should stop during the grace period without starting the pool", func() {
		factory.EXPECT().New(gomock.Any(), gomock.Any()).DoAndReturn(
			func(topic pubsub.Topic, codec pubsub.Codec) (pubsub.Publisher, error) {
				return pubsub.NewMemoryPublisher(config, topic, codec), nil
			})

		generator, pool := newGenerator(loadgen.GeneratorOptions{SendRegistry: true, GracePeriod: time.Hour}, true)
		ctx, cancel := context.WithCancel(context.Background())
		wg := run(ctx, generator)

		Eventually(func() int { return config.Count("configuration") }).Should(Equal(1))
		cancel()
		wg.Wait()

		for _, w := range pool.Workers() {
			Expect(w.Passes()).To(BeZero())
		}
		Expect(data.Count(inputTopic)).To(BeZero())
	})

	It("should keep generating when the announcement fails", func() {
		factory.EXPECT().New(gomock.Any(), gomock.Any()).Return(nil, pubsub.ErrKafkaUnreachable)

		generator, _ := newGenerator(loadgen.GeneratorOptions{SendRegistry: true}, true)
		ctx, cancel := context.WithCancel(context.Background())
		wg := run(ctx, generator)

		Eventually(func() int { return data.Count(inputTopic) }).Should(BeNumerically(">", 0))
		cancel()
		wg.Wait()
	})

	It("should close the data handles on shutdown", func() {
		generator, _ := newGenerator(loadgen.GeneratorOptions{}, true)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		run(ctx, generator).Wait()

		generator.Shutdown()
		Expect(handleA.PublishAsync("s", domain.NewReading("s", 1)).Err()).To(MatchError(pubsub.ErrPublisherClosed))
		Expect(handleB.PublishAsync("s", domain.NewReading("s", 1)).Err()).To(MatchError(pubsub.ErrPublisherClosed))
	})
})
