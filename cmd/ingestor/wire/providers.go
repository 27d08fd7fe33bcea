package wire

import (
	"context"
	"fmt"
	"log/slog"

	"sensekit-server/cmd/config"
	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/cache"
	"sensekit-server/internal/infra/mqtt"
	"sensekit-server/internal/infra/node"
	"sensekit-server/internal/infra/pubsub"
	"sensekit-server/internal/infra/sql"
	"sensekit-server/internal/ingestion"
	"sensekit-server/internal/persistence"

	"go.opentelemetry.io/otel"
)

func provideAppConfig() config.AppConfig {
	return config.LoadConfig()
}

func provideDatabase(cfg config.AppConfig) (sql.ORM, func(), error) {
	var (
		db  *sql.DB
		err error
	)
	if cfg.IsLocal() {
		db, err = sql.NewMemoryORM("sensekit")
	} else {
		db, err = sql.NewPosgreORM(cfg.Database.DSN, cfg.Database.Timeout)
	}
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			slog.Error("closing database", slog.Any("error", err))
		}
	}
	return db, cleanup, nil
}

func provideCache() (cache.Cache, func(), error) {
	c, err := cache.New(cache.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}

	return c, c.Close, nil
}

// providePublisherFactoryForEnvironment returns nil when readings are not
// forwarded anywhere besides the database.
func providePublisherFactoryForEnvironment(cfg config.AppConfig) pubsub.PublisherFactory {
	switch {
	case cfg.IsLocal():
		return pubsub.NewMemoryPublisherFactory(pubsub.NewMemoryBroker())
	case cfg.Kafka.Enabled:
		return pubsub.NewKafkaPublisherFactory(cfg.Kafka.Brokers)
	default:
		return nil
	}
}

func provideRegistry(cfg config.AppConfig) (*calibration.Registry, error) {
	registrations := calibration.BuiltinRegistrations()
	for _, profile := range cfg.Calibration.Profiles {
		registrations = append(registrations, calibration.ProfileRegistration(profile))
	}

	registry, err := calibration.NewRegistry(registrations...)
	if err != nil {
		return nil, fmt.Errorf("building calibrator registry: %w", err)
	}

	slog.Info("calibrators registered", slog.Any("hardware_ids", registry.HardwareIDs()))
	return registry, nil
}

func provideMetrics() (*ingestion.Metrics, error) {
	return ingestion.NewMetrics(otel.Meter("sensekit_server"))
}

func provideDeviceDirectory(cfg config.AppConfig, orm sql.ORM, c cache.Cache) (ingestion.DeviceDirectory, error) {
	directory, err := persistence.NewDeviceDirectory(orm)
	if err != nil {
		return nil, err
	}

	if cfg.IsLocal() {
		for deviceID, hardwareID := range cfg.Directory.Seed {
			if err := directory.RegisterDevice(context.Background(), deviceID, calibration.HardwareID(hardwareID)); err != nil {
				return nil, err
			}
		}
	}

	return persistence.NewCachedDeviceDirectory(directory, c, cfg.Directory.CacheTTL), nil
}

// provideSinks returns a cleanup that closes the publisher; it must run after
// the dispatcher has drained.
func provideSinks(cfg config.AppConfig, orm sql.ORM, publisherFactory pubsub.PublisherFactory) ([]ingestion.NamedSink, func(), error) {
	store, err := persistence.NewReadingStore(orm)
	if err != nil {
		return nil, nil, err
	}

	sinks := []ingestion.NamedSink{{Name: "database", Sink: store}}
	if publisherFactory == nil {
		return sinks, func() {}, nil
	}

	publisher, err := persistence.NewReadingPublisher(publisherFactory, pubsub.Topic(cfg.Kafka.ReadingsTopic))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			slog.Error("closing reading publisher", slog.Any("error", err))
		}
	}
	return append(sinks, ingestion.NamedSink{Name: "publisher", Sink: publisher}), cleanup, nil
}

func provideDispatcher(cfg config.AppConfig, metrics *ingestion.Metrics, sinks []ingestion.NamedSink) (*ingestion.Dispatcher, error) {
	policy, err := ingestion.ParseOverflowPolicy(cfg.Ingestion.OverflowPolicy)
	if err != nil {
		return nil, err
	}

	return ingestion.NewDispatcher(ingestion.DispatcherOpts{
		QueueSize:     cfg.Ingestion.QueueSize,
		Workers:       cfg.Ingestion.Workers,
		Policy:        policy,
		RetryAttempts: cfg.Ingestion.SinkRetryAttempts,
		RetryInterval: cfg.Ingestion.SinkRetryInterval,
	}, metrics, sinks...)
}

func provideMQTTClient(cfg config.AppConfig) mqtt.Client {
	return mqtt.NewSimpleClient(mqtt.SimpleClientOpts{
		Broker:   cfg.MQTTClient.Broker,
		ClientID: node.GetNodeInfo().ClientID(cfg.MQTTClient.ClientID),
		Username: cfg.MQTTClient.Username,
		Password: cfg.MQTTClient.Password, //pragma: allowlist secret
		Backoff: mqtt.BackoffOpts{
			InitialInterval: cfg.MQTTClient.Backoff.InitialInterval,
			MaxInterval:     cfg.MQTTClient.Backoff.MaxInterval,
			Multiplier:      cfg.MQTTClient.Backoff.Multiplier,
			Jitter:          cfg.MQTTClient.Backoff.Jitter,
		},
	})
}

func provideIngestorOpts(cfg config.AppConfig) ingestion.Opts {
	return ingestion.Opts{
		HardwareLine: cfg.MQTTClient.HardwareLine,
		QoS:          cfg.MQTTClient.QoS,
		DrainTimeout: cfg.Ingestion.DrainTimeout,
	}
}
