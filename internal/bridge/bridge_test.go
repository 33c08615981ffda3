package bridge_test

import (
	"context"
	"errors"
	"time"

	"sensor-bridge/internal/bridge"
	"sensor-bridge/internal/bridge/pipeline"
	"sensor-bridge/internal/bridge/raritan"
	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/shared_kernel/domain"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const raritanExport = `{
	"sensors": [{"id": "activePower", "device": {"label": "rack-7"}}],
	"rows": [
		{"timestamp": 1000, "records": [{"avgValue": 10.5}]},
		{"timestamp": 2000, "records": [{"avgValue": 20.5}]},
		{"timestamp": 3000, "records": [{"avgValue": 30.5}]}
	]
}`

var _ = Describe("Bridge", func() {
	var (
		broker    *pubsub.MemoryBroker
		publisher pubsub.Publisher
		sender    *bridge.KafkaRecordSender
		builder   *bridge.Builder
	)

	BeforeEach(func() {
		broker = pubsub.NewMemoryBroker()
		publisher = pubsub.NewMemoryPublisher(broker, "input", pubsub.NewJSONCodec[domain.Reading]())
		var err error
		sender, err = bridge.NewKafkaRecordSender(publisher, "input", nil)
		Expect(err).NotTo(HaveOccurred())
		builder = bridge.NewBuilder().
			WithTransformer(raritan.NewTransformer(raritan.DefaultSensorID).Transform).
			WithSender(sender).
			WithPipeCapacity(4)
	})

	Context("building", func() {
		It("should require a transformer and a sender", func() {
			_, err := bridge.NewBuilder().WithSender(sender).Build()
			Expect(err).To(MatchError(bridge.ErrIncomplete))

			_, err = bridge.NewBuilder().WithTransformer(raritan.NewTransformer("").Transform).Build()
			Expect(err).To(MatchError(bridge.ErrIncomplete))
		})

		It("should reject a non positive pipe capacity", func() {
			_, err := builder.WithPipeCapacity(0).Build()
			Expect(err).To(HaveOccurred())
		})
	})

	Context("running", func() {
		It("should forward every row of an export in order", func() {
			b, err := builder.Build()
			Expect(err).NotTo(HaveOccurred())

			ctx := context.Background()
			Expect(b.Start(ctx)).To(Succeed())
			Expect(b.Offer(ctx, []byte(raritanExport))).To(Succeed())
			Expect(b.Stop(ctx)).To(Succeed())

			messages := broker.Messages("input")
			Expect(messages).To(HaveLen(3))
			for i, m := range messages {
				Expect(m.Key).To(Equal(pubsub.Key("rack-7")))
				Expect(m.Message).To(Equal(domain.Reading{
					Identifier: "rack-7",
					Timestamp:  int64(i+1) * 1000,
					Value:      int32((i + 1) * 10),
				}))
			}
		})

		It("should drop malformed payloads and keep going", func() {
			b, err := builder.Build()
			Expect(err).NotTo(HaveOccurred())

			ctx := context.Background()
			Expect(b.Start(ctx)).To(Succeed())
			Expect(b.Offer(ctx, []byte(`{"sensors": [`))).To(Succeed())
			Expect(b.Offer(ctx, []byte(`{"sensors": [{"id": "voltage"}], "rows": []}`))).To(Succeed())
			Expect(b.Offer(ctx, []byte(raritanExport))).To(Succeed())
			Expect(b.Stop(ctx)).To(Succeed())

			Expect(broker.Count("input")).To(Equal(3))
		})

		It("should refuse payloads before start and after stop", func() {
			b, err := builder.Build()
			Expect(err).NotTo(HaveOccurred())

			ctx := context.Background()
			Expect(b.Offer(ctx, []byte(raritanExport))).To(MatchError(bridge.ErrNotStarted))
			Expect(b.Start(ctx)).To(Succeed())
			Expect(b.Start(ctx)).To(MatchError(bridge.ErrAlreadyStarted))
			Expect(b.Stop(ctx)).To(Succeed())
			Expect(b.Offer(ctx, []byte(raritanExport))).To(MatchError(pipeline.ErrTerminating))
			Expect(b.Stop(ctx)).To(Succeed())
		})

		It("should close the sender's publisher on termination", func() {
			b, err := builder.Build()
			Expect(err).NotTo(HaveOccurred())

			ctx := context.Background()
			Expect(b.Start(ctx)).To(Succeed())
			Expect(b.Stop(ctx)).To(Succeed())
			Expect(publisher.PublishAsync("k", domain.NewReading("k", 1)).Err()).To(MatchError(pubsub.ErrPublisherClosed))
		})

		It("should close the sender's publisher even if never started", func() {
			b, err := builder.Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(b.Stop(context.Background())).To(Succeed())
			Expect(publisher.PublishAsync("k", domain.NewReading("k", 1)).Err()).To(MatchError(pubsub.ErrPublisherClosed))
		})
	})

	Context("actions", func() {
		It("should run on-start actions in order before the pipeline starts", func() {
			var calls []string
			b, err := builder.
				OnStart(func(context.Context) error { calls = append(calls, "first"); return nil }).
				OnStart(func(context.Context) error { calls = append(calls, "second"); return nil }).
				Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(b.Start(context.Background())).To(Succeed())
			Expect(calls).To(Equal([]string{"first", "second"}))
			Expect(b.Stop(context.Background())).To(Succeed())
		})

		It("should not start when an on-start action fails", func() {
			subscribeErr := errors.New("broker unavailable")
			b, err := builder.
				OnStart(func(context.Context) error { return subscribeErr }).
				Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(b.Start(context.Background())).To(MatchError(subscribeErr))
			Expect(b.Offer(context.Background(), []byte(raritanExport))).To(MatchError(bridge.ErrNotStarted))
		})

		It("should run every on-stop action and join their errors", func() {
			first := errors.New("first failed")
			second := errors.New("second failed")
			ran := make(chan string, 3)

			b, err := builder.
				OnStop(func(context.Context) error { ran <- "a"; return first }).
				OnStopFunc(func() { ran <- "b" }).
				OnStop(func(context.Context) error { ran <- "c"; return second }).
				Build()
			Expect(err).NotTo(HaveOccurred())

			Expect(b.Start(context.Background())).To(Succeed())
			err = b.Stop(context.Background())
			Expect(err).To(MatchError(first))
			Expect(err).To(MatchError(second))
			Expect(ran).To(HaveLen(3))
		})

		It("should give up waiting for the pipeline when the context ends", func() {
			release := make(chan struct{})
			b, err := bridge.NewBuilder().
				WithTransformer(raritan.NewTransformer("").Transform).
				WithSender(pipeline.ConsumerFunc[domain.Reading](func(domain.Reading) { <-release })).
				Build()
			Expect(err).NotTo(HaveOccurred())
			defer close(release)

			Expect(b.Start(context.Background())).To(Succeed())
			Expect(b.Offer(context.Background(), []byte(raritanExport))).To(Succeed())

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			Expect(b.Stop(ctx)).To(MatchError(context.DeadlineExceeded))
		})
	})
})
