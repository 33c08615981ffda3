package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensor-bridge/cmd/bridge/wire"
	"sensor-bridge/cmd/config"
	"sensor-bridge/internal/bridge"
	"sensor-bridge/internal/infra/httpserver"
	"sensor-bridge/internal/infra/logging"
	"sensor-bridge/internal/infra/node"
	"sensor-bridge/internal/infra/telemetry"
)

const _stopTimeout = 30 * time.Second

func main() {
	cfg := config.LoadConfig()

	logging.Setup(os.Stdout, cfg.General.LogLevel)
	slog.Info("🚀 raritan bridge is initializing")
	slog.Info("node info", slog.Any("node", node.GetNodeInfo()))
	slog.Debug("config loaded", "data", cfg)

	shutdownOtel := startOTel(cfg)

	raritanBridge := handleWireInjector(wire.InitializeRaritanBridge()).(*bridge.Bridge)
	httpServer := httpserver.NewServer(cfg.HTTP.Addr,
		handleWireInjector(wire.InitializeRaritanController(raritanBridge)).(httpserver.Controller),
	)

	appCtx, cancelFn := context.WithCancel(context.Background())
	if err := raritanBridge.Start(appCtx); err != nil {
		slog.Error("failed to start bridge", slog.Any("error", err))
		panic(err)
	}
	go httpServer.Run()

	signalChannel := make(chan os.Signal, 2)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	<-signalChannel
	httpServer.Shutdown()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), _stopTimeout)
	if err := raritanBridge.Stop(stopCtx); err != nil {
		slog.Error("stopping bridge", slog.Any("error", err))
	}
	stopCancel()

	cancelFn()
	if err := shutdownOtel(); err != nil {
		slog.Error("shutting down OTel", slog.Any("error", err))
	}
	slog.Info("good bye!!!")
	os.Exit(0)
}

func startOTel(cfg config.AppConfig) telemetry.ShutdownFunc {
	if !cfg.Telemetry.Enabled {
		return func() error { return nil }
	}

	shutdown, err := telemetry.Start(context.Background(), telemetry.Options{
		ServiceName: "sensor-bridge",
		Version:     node.Version,
		Endpoint:    cfg.Telemetry.Endpoint,
	})
	if err != nil {
		slog.Error("failed to start OTel", slog.Any("error", err))
		panic(err)
	}
	return shutdown
}

func handleWireInjector(value any, err error) any {
	if err != nil {
		panic(err)
	}

	return value
}
