package loadgen

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/shared_kernel/domain"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const _meterName = "sensor_bridge"

type PoolOptions struct {
	Threads int
	Value   int32
	// Active is false when the pool should iterate without publishing.
	Active  bool
}

// NewPublisherPool prepares one worker per thread. Even workers drive
// handleA, odd workers drive handleB.
func NewPublisherPool(handleA, handleB pubsub.Publisher, sensors []string, opts PoolOptions) *PublisherPool {
	threads := max(opts.Threads, 0)
	ids := make([]string, len(sensors))
	copy(ids, sensors)

	workers := make([]*PoolWorker, threads)
	for i := range workers {
		handle := handleA
		if i%2 != 0 {
			handle = handleB
		}
		workers[i] = &PoolWorker{index: i, handle: handle}
	}

	return &PublisherPool{
		sensors: ids,
		value:   opts.Value,
		active:  opts.Active,
		workers: workers,
	}
}

type PublisherPool struct {
	sensors []string
	value   int32
	active  bool
	workers []*PoolWorker
	wg      sync.WaitGroup
	started atomic.Bool
}

// PoolWorker is one publishing goroutine with its counters.
type PoolWorker struct {
	index   int
	handle  pubsub.Publisher
	passes  atomic.Int64
	emitted atomic.Int64
}

func (w *PoolWorker) Index() int               { return w.index }
func (w *PoolWorker) Handle() pubsub.Publisher { return w.handle }

// Passes is the number of complete iterations over the sensor list.
func (w *PoolWorker) Passes() int64 { return w.passes.Load() }

// Emitted is the number of readings handed to the publisher.
func (w *PoolWorker) Emitted() int64 { return w.emitted.Load() }

func (p *PublisherPool) Workers() []*PoolWorker {
	result := make([]*PoolWorker, len(p.workers))
	copy(result, p.workers)
	return result
}

func (p *PublisherPool) Active() bool {
	return p.active
}

// Start launches every worker in index order and returns without waiting for
// them. Workers run until ctx is done. Calling Start twice is a no-op.
func (p *PublisherPool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	slog.Info("starting publisher pool",
		slog.Int("threads", len(p.workers)),
		slog.Int("sensors", len(p.sensors)),
		slog.Bool("active", p.active))

	for _, w := range p.workers {
		p.wg.Add(1)
		go p.run(ctx, w)
	}
}

// Wait blocks until every started worker has returned.
func (p *PublisherPool) Wait() {
	p.wg.Wait()
}

func (p *PublisherPool) run(ctx context.Context, w *PoolWorker) {
	defer p.wg.Done()
	slog.Debug("pool worker started", slog.Int("worker", w.index))

	for ctx.Err() == nil {
		for _, id := range p.sensors {
			if !p.active {
				continue
			}
			_ = w.handle.PublishAsync(pubsub.Key(id), domain.NewReading(id, p.value))
			w.emitted.Add(1)
		}
		w.passes.Add(1)
	}

	slog.Debug("pool worker stopped",
		slog.Int("worker", w.index),
		slog.Int64("passes", w.passes.Load()),
		slog.Int64("emitted", w.emitted.Load()))
}

func (p *PublisherPool) totalEmitted() int64 {
	var total int64
	for _, w := range p.workers {
		total += w.Emitted()
	}
	return total
}

func (p *PublisherPool) totalPasses() int64 {
	var total int64
	for _, w := range p.workers {
		total += w.Passes()
	}
	return total
}

// RegisterMetrics exposes the pool counters on reg for the ops server's
// /metrics endpoint.
func (p *PublisherPool) RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: _meterName,
			Subsystem: "loadgen",
			Name:      "readings_emitted_total",
			Help:      "Readings handed to the Kafka producer by the publisher pool.",
		}, func() float64 { return float64(p.totalEmitted()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: _meterName,
			Subsystem: "loadgen",
			Name:      "sensor_passes_total",
			Help:      "Complete iterations over the sensor list.",
		}, func() float64 { return float64(p.totalPasses()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("registering pool metrics: %w", err)
		}
	}
	return nil
}

// setupOtelCounters reports per worker counters through the global meter
// provider. Without telemetry enabled the global provider is a no-op.
func (p *PublisherPool) setupOtelCounters() error {
	meter := otel.Meter(_meterName)
	emitted, err := meter.Int64ObservableCounter(
		fmt.Sprintf("%s.%s", _meterName, "loadgen.readings.emitted"),
		metric.WithDescription("readings handed to the producer per pool worker"),
	)
	if err != nil {
		return fmt.Errorf("creating emitted counter: %w", err)
	}
	passes, err := meter.Int64ObservableCounter(
		fmt.Sprintf("%s.%s", _meterName, "loadgen.passes"),
		metric.WithDescription("iterations over the sensor list per pool worker"),
	)
	if err != nil {
		return fmt.Errorf("creating passes counter: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, w := range p.workers {
			attrs := metric.WithAttributes(attribute.String("worker", strconv.Itoa(w.index)))
			o.ObserveInt64(emitted, w.Emitted(), attrs)
			o.ObserveInt64(passes, w.Passes(), attrs)
		}
		return nil
	}, emitted, passes)
	if err != nil {
		return fmt.Errorf("registering pool callback: %w", err)
	}
	return nil
}
