//go:build wireinject
// +build wireinject

package wire

import (
	"sensor-bridge/internal/bridge"
	"sensor-bridge/internal/bridge/sources"

	"github.com/google/wire"
)

func InitializeRaritanBridge() (*bridge.Bridge, error) {
	wire.Build(
		provideAppConfig,
		providePubSubFactory,
		providePublisherFactory,
		provideReadingCodec,
		provideRecordSender,
		provideTransformer,
		provideMQTTClient,
		provideBridge,
	)
	return nil, nil
}

func InitializeRaritanController(b *bridge.Bridge) (*sources.RaritanController, error) {
	wire.Build(
		wire.Bind(new(sources.Offerer), new(*bridge.Bridge)),
		sources.NewRaritanController,
	)
	return nil, nil
}
