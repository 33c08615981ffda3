package loadgen

import (
	"context"
	"log/slog"
	"time"

	"sensor-bridge/internal/infra/async"
	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/shared_kernel/domain"
)

const DefaultRegistryGracePeriod = 30 * time.Second

type GeneratorOptions struct {
	SendRegistry bool
	GracePeriod  time.Duration
}

func NewGenerator(
	registry domain.SensorRegistry,
	announcer *RegistryPublisher,
	refresher *RegistryRefresher,
	pool *PublisherPool,
	handles []pubsub.Publisher,
	opts GeneratorOptions,
) *Generator {
	return &Generator{
		registry:  registry,
		announcer: announcer,
		refresher: refresher,
		pool:      pool,
		handles:   handles,
		opts:      opts,
	}
}

var _ async.Worker = &Generator{}

// Generator announces the registry, waits for consumers to pick it up and
// then keeps the publisher pool running until its context is done.
type Generator struct {
	registry  domain.SensorRegistry
	announcer *RegistryPublisher
	refresher *RegistryRefresher
	pool      *PublisherPool
	handles   []pubsub.Publisher
	opts      GeneratorOptions
}

func (g *Generator) Run(ctx context.Context, done func()) {
	slog.Debug("load generator started")
	defer done()

	if err := g.pool.setupOtelCounters(); err != nil {
		slog.Warn("pool telemetry unavailable", slog.Any("error", err))
	}

	if g.opts.SendRegistry {
		if err := g.announcer.Publish(ctx, g.registry); err != nil {
			slog.Error("announcing sensor registry", slog.Any("error", err))
		}
		if !g.pause(ctx) {
			slog.Info("load generator cancelled during grace period")
			return
		}
	}

	if g.refresher != nil {
		if err := g.refresher.Start(ctx); err != nil {
			slog.Error("starting registry refresher", slog.Any("error", err))
		}
		defer g.refresher.Stop()
	}

	g.pool.Start(ctx)
	g.pool.Wait()
	slog.Info("load generator cancelled")
}

// pause sleeps for the grace period. It reports false if ctx ended first.
func (g *Generator) pause(ctx context.Context) bool {
	if g.opts.GracePeriod <= 0 {
		return ctx.Err() == nil
	}

	slog.Info("waiting for consumers to apply the registry", slog.Duration("grace_period", g.opts.GracePeriod))
	timer := time.NewTimer(g.opts.GracePeriod)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Shutdown closes the data handles, flushing whatever the producers still
// buffer. It must only be called after Run has returned.
func (g *Generator) Shutdown() {
	for _, h := range g.handles {
		if err := h.Close(); err != nil {
			slog.Error("closing publisher handle", slog.Any("error", err))
		}
	}
	slog.Info("load generator shutdown")
}
