package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"sensor-bridge/cmd/config"
	"sensor-bridge/internal/infra/httpserver"
	"sensor-bridge/internal/infra/logging"
	"sensor-bridge/internal/infra/node"
	"sensor-bridge/internal/infra/pubsub"
	"sensor-bridge/internal/infra/telemetry"
	"sensor-bridge/internal/loadgen"
	"sensor-bridge/internal/shared_kernel/codecs"
	"sensor-bridge/internal/shared_kernel/domain"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg := config.LoadConfig()

	logging.Setup(os.Stdout, cfg.General.LogLevel)
	slog.Info("🚀 load generator is initializing")
	slog.Info("node info", slog.Any("node", node.GetNodeInfo()))
	slog.Debug("config loaded", "data", cfg)

	shutdownOtel := startOTel(cfg)

	registry, err := domain.NewSensorRegistryBuilder().
		WithHierarchy(cfg.LoadGen.Hierarchy).
		WithNestedGroups(cfg.LoadGen.NumNestedGroups).
		WithSensors(cfg.LoadGen.NumSensors).
		Build()
	if err != nil {
		slog.Error("failed to build sensor registry", slog.Any("error", err))
		panic(err)
	}
	sensors := registry.SensorIdentifiers()
	slog.Info("sensor registry built",
		slog.String("hierarchy", cfg.LoadGen.Hierarchy),
		slog.Int("nested_groups", cfg.LoadGen.NumNestedGroups),
		slog.Int("sensors", len(sensors)))

	tuning := pubsub.ProducerTuning{
		BatchSize:    cfg.Kafka.BatchSize,
		LingerMs:     cfg.Kafka.LingerMs,
		BufferMemory: cfg.Kafka.BufferMemory,
	}
	if err := tuning.Validate(); err != nil {
		slog.Error("invalid producer tuning", slog.Any("error", err))
		panic(err)
	}

	codec := handleInjector(codecs.NewReadingCodec(cfg.Kafka.Codec, cfg.Kafka.InputTopic, cfg.Kafka.SchemaRegistry)).(pubsub.Codec)
	inputTopic := pubsub.Topic(cfg.Kafka.InputTopic)
	handleA := handleInjector(newPublisherFactory(cfg, tuning, "a").New(inputTopic, codec)).(pubsub.Publisher)
	handleB := handleInjector(newPublisherFactory(cfg, tuning, "b").New(inputTopic, codec)).(pubsub.Publisher)

	announcer := loadgen.NewRegistryPublisher(newPublisherFactory(cfg, tuning, "registry"), pubsub.Topic(cfg.Kafka.ConfigurationTopic))
	refresher := handleInjector(loadgen.NewRegistryRefresher(cfg.LoadGen.RegistryRefreshSchedule, announcer, registry)).(*loadgen.RegistryRefresher)

	pool := loadgen.NewPublisherPool(handleA, handleB, sensors, loadgen.PoolOptions{
		Threads: cfg.LoadGen.Threads,
		Value:   cfg.LoadGen.Value,
		Active:  !cfg.LoadGen.DoNothing,
	})
	if err := pool.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		slog.Error("failed to register pool metrics", slog.Any("error", err))
		panic(err)
	}

	generator := loadgen.NewGenerator(registry, announcer, refresher, pool, []pubsub.Publisher{handleA, handleB}, loadgen.GeneratorOptions{
		SendRegistry: cfg.LoadGen.SendRegistry,
		GracePeriod:  cfg.LoadGen.RegistryGracePeriod,
	})

	httpServer := httpserver.NewServer(cfg.HTTP.Addr)
	go httpServer.Run()

	appCtx, cancelFn := context.WithTimeout(context.Background(), cfg.LoadGen.Lifetime)

	var wg sync.WaitGroup
	wg.Add(1)
	go generator.Run(appCtx, wg.Done)

	signalChannel := make(chan os.Signal, 2)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChannel:
		slog.Info("signal received", slog.String("signal", sig.String()))
	case <-appCtx.Done():
		slog.Info("lifetime elapsed", slog.Duration("lifetime", cfg.LoadGen.Lifetime))
	}

	cancelFn()
	wg.Wait()
	generator.Shutdown()
	httpServer.Shutdown()
	if err := shutdownOtel(); err != nil {
		slog.Error("shutting down OTel", slog.Any("error", err))
	}
	slog.Info("good bye!!!")
	os.Exit(0)
}

// newPublisherFactory gives every handle its own client id so the producers
// can be told apart on the broker.
func newPublisherFactory(cfg config.AppConfig, tuning pubsub.ProducerTuning, handle string) pubsub.PublisherFactory {
	return pubsub.NewFactory(pubsub.FactoryOptions{
		Environment:     cfg.General.Environment,
		KafkaBrokers:    cfg.Kafka.Brokers,
		ClientID:        node.ClientID("loadgen", handle),
		Tuning:          tuning,
		ConnectAttempts: cfg.Kafka.ConnectAttempts,
	}).GetPublisherFactory()
}

func startOTel(cfg config.AppConfig) telemetry.ShutdownFunc {
	if !cfg.Telemetry.Enabled {
		return func() error { return nil }
	}

	shutdown, err := telemetry.Start(context.Background(), telemetry.Options{
		ServiceName: "sensor-loadgen",
		Version:     node.Version,
		Endpoint:    cfg.Telemetry.Endpoint,
	})
	if err != nil {
		slog.Error("failed to start OTel", slog.Any("error", err))
		panic(err)
	}
	return shutdown
}

func handleInjector(value any, err error) any {
	if err != nil {
		slog.Error("failed to initialize dependency", slog.Any("error", err))
		panic(err)
	}

	return value
}
