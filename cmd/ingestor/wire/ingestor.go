//go:build wireinject
// +build wireinject

package wire

import (
	"sensekit-server/internal/calibration"
	"sensekit-server/internal/ingestion"

	"github.com/google/wire"
)

func InitializeIngestor() (*ingestion.PacketIngestor, func(), error) {
	wire.Build(
		provideAppConfig,
		provideDatabase,
		provideCache,
		providePublisherFactoryForEnvironment,
		provideRegistry,
		wire.Bind(new(ingestion.CalibratorResolver), new(*calibration.Registry)),
		provideMetrics,
		provideDeviceDirectory,
		provideSinks,
		provideDispatcher,
		provideMQTTClient,
		provideIngestorOpts,
		ingestion.NewPacketIngestor,
	)
	return nil, nil, nil
}
