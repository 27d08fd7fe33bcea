package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/cache"
	"sensekit-server/internal/infra/mqtt"
	"sensekit-server/internal/infra/pubsub"
	"sensekit-server/internal/infra/sql"
	"sensekit-server/internal/ingestion"
	"sensekit-server/internal/persistence"

	"github.com/google/uuid"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.opentelemetry.io/otel/metric/noop"
)

const ReadingsTopic pubsub.Topic = "readings"

// Broker is an in-process MQTT broker shared by every scenario.
type Broker struct {
	server  *mochi.Server
	address string
}

func StartBroker(address string) (*Broker, error) {
	server := mochi.New(nil)
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}
	if err := server.AddListener(listeners.NewTCP(listeners.Config{ID: "functional", Address: address})); err != nil {
		return nil, err
	}
	if err := server.Serve(); err != nil {
		return nil, err
	}

	return &Broker{server: server, address: address}, nil
}

func (b *Broker) URL() string {
	return fmt.Sprintf("tcp://%s", b.address)
}

func (b *Broker) Close() error {
	return b.server.Close()
}

// Pipeline wires a real ingestor to the shared broker, an in-memory sqlite
// database and an in-memory publisher.
type Pipeline struct {
	HardwareLine string
	Directory    *persistence.GormDeviceDirectory
	Store        *persistence.GormReadingStore
	Events       *pubsub.MemoryBroker

	ingestor  *ingestion.PacketIngestor
	cache     *cache.RistrettoCache
	device    *mqtt.SimpleClient
	stopped   chan struct{}
	cancelRun context.CancelFunc
	release   sync.Once
}

func StartPipeline(broker *Broker, hardwareLine string) (*Pipeline, error) {
	orm, err := sql.NewMemoryORM(uuid.NewString())
	if err != nil {
		return nil, err
	}
	directory, err := persistence.NewDeviceDirectory(orm)
	if err != nil {
		return nil, err
	}
	store, err := persistence.NewReadingStore(orm)
	if err != nil {
		return nil, err
	}

	events := pubsub.NewMemoryBroker()
	publisher, err := persistence.NewReadingPublisher(pubsub.NewMemoryPublisherFactory(events), ReadingsTopic)
	if err != nil {
		return nil, err
	}

	registry, err := calibration.NewRegistry(calibration.BuiltinRegistrations()...)
	if err != nil {
		return nil, err
	}

	metrics, err := ingestion.NewMetrics(noop.NewMeterProvider().Meter("functional"))
	if err != nil {
		return nil, err
	}
	dispatcher, err := ingestion.NewDispatcher(ingestion.DefaultDispatcherOpts(), metrics,
		ingestion.NamedSink{Name: "database", Sink: store},
		ingestion.NamedSink{Name: "publisher", Sink: publisher})
	if err != nil {
		return nil, err
	}

	directoryCache, err := cache.New(nil)
	if err != nil {
		return nil, err
	}

	transport := mqtt.NewSimpleClient(mqtt.SimpleClientOpts{
		Broker:   broker.URL(),
		ClientID: "ingestor-" + uuid.NewString()[:8],
	})
	ingestor := ingestion.NewPacketIngestor(
		transport,
		persistence.NewCachedDeviceDirectory(directory, directoryCache, time.Minute),
		registry,
		dispatcher,
		metrics,
		ingestion.Opts{HardwareLine: hardwareLine, DrainTimeout: 5 * time.Second},
	)

	device := mqtt.NewSimpleClient(mqtt.SimpleClientOpts{
		Broker:   broker.URL(),
		ClientID: "device-" + uuid.NewString()[:8],
	})
	connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := device.Connect(connectCtx); err != nil {
		return nil, err
	}

	ctx, cancelRun := context.WithCancel(context.Background())
	pipeline := &Pipeline{
		HardwareLine: hardwareLine,
		Directory:    directory,
		Store:        store,
		Events:       events,
		ingestor:     ingestor,
		cache:        directoryCache,
		device:       device,
		stopped:      make(chan struct{}),
		cancelRun:    cancelRun,
	}
	go ingestor.Run(ctx, func() { close(pipeline.stopped) })

	return pipeline, nil
}

func (p *Pipeline) State() ingestion.State {
	return p.ingestor.State()
}

func (p *Pipeline) Publish(topic string, payload []byte) error {
	return p.device.Publish(topic, payload)
}

func (p *Pipeline) DeviceTopic(deviceID string) string {
	return fmt.Sprintf("device/%s/%s/readings", p.HardwareLine, deviceID)
}

// Stop drains the ingestor and waits for Run to return.
func (p *Pipeline) Stop(timeout time.Duration) error {
	p.cancelRun()
	defer p.release.Do(func() {
		p.device.Disconnect()
		p.cache.Close()
	})

	select {
	case <-p.stopped:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("ingestor still running after %s", timeout)
	}
}
