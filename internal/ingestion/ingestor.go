package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/infra/async"
	"sensekit-server/internal/infra/mqtt"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	_defaultDrainTimeout   = 10 * time.Second
	_subscribeMaxInterval  = 30 * time.Second
	_subscribeInitInterval = 500 * time.Millisecond
)

type Opts struct {
	HardwareLine string
	QoS          byte
	// DrainTimeout bounds the whole shutdown: in-flight callbacks plus the
	// sink queue.
	DrainTimeout time.Duration
	Clock        func() time.Time
}

// Summary describes what happened to one accepted packet.
type Summary struct {
	DeviceID   string
	HardwareID calibration.HardwareID
	Dispatched int
	Skipped    int
}

var _ async.Worker = (*PacketIngestor)(nil)

// PacketIngestor owns one subscription: it turns every readings message into
// calibrated readings and hands them to the dispatcher. A bad packet or a bad
// channel is logged and skipped; it never stops the subscription.
type PacketIngestor struct {
	transport  mqtt.Client
	directory  DeviceDirectory
	registry   CalibratorResolver
	dispatcher *Dispatcher
	metrics    *Metrics
	opts       Opts
	topic      string
	tracer     trace.Tracer
	state      stateHolder

	mu        sync.Mutex
	accepting bool
	inflight  sync.WaitGroup
	cancel    context.CancelFunc
	callbacks context.Context
}

func NewPacketIngestor(
	transport mqtt.Client,
	directory DeviceDirectory,
	registry CalibratorResolver,
	dispatcher *Dispatcher,
	metrics *Metrics,
	opts Opts,
) *PacketIngestor {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = _defaultDrainTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &PacketIngestor{
		transport:  transport,
		directory:  directory,
		registry:   registry,
		dispatcher: dispatcher,
		metrics:    metrics,
		opts:       opts,
		topic:      TopicPattern(opts.HardwareLine),
		tracer:     otel.Tracer("sensekit_server"),
	}
}

func (i *PacketIngestor) Topic() string {
	return i.topic
}

func (i *PacketIngestor) State() State {
	return i.state.load()
}

func (i *PacketIngestor) transition(next State) {
	previous := i.state.swap(next)
	if previous != next {
		slog.Info("ingestor state changed",
			slog.String("from", previous.String()),
			slog.String("to", next.String()),
			slog.String("topic", i.topic))
	}
}

// Run connects, subscribes and processes messages until ctx is done or
// Shutdown is called, then drains and disconnects.
func (i *PacketIngestor) Run(ctx context.Context, done func()) {
	defer done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	callbacks, abort := context.WithCancel(context.Background())
	defer abort()

	i.mu.Lock()
	i.cancel = cancel
	i.callbacks = callbacks
	i.mu.Unlock()

	slog.Info("starting packet ingestor", slog.String("topic", i.topic))

	i.transport.SetConnectionHandler(i.onConnection)
	i.transition(StateConnecting)
	i.dispatcher.Start()

	if err := i.transport.Connect(ctx); err != nil {
		if ctx.Err() == nil {
			slog.Error("could not connect ingestor transport", slog.Any("error", err))
		}
		i.stop(abort)
		return
	}

	if err := i.subscribe(ctx); err != nil {
		if ctx.Err() == nil {
			slog.Error("could not subscribe ingestor", slog.String("topic", i.topic), slog.Any("error", err))
		}
		i.stop(abort)
		return
	}

	<-ctx.Done()
	i.stop(abort)
}

// Shutdown stops a running ingestor. Run performs the drain before returning.
func (i *PacketIngestor) Shutdown() {
	i.mu.Lock()
	cancel := i.cancel
	i.mu.Unlock()

	if cancel != nil {
		slog.Info("packet ingestor shutdown requested", slog.String("topic", i.topic))
		cancel()
	}
}

func (i *PacketIngestor) subscribe(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = _subscribeInitInterval
	b.MaxInterval = _subscribeMaxInterval
	b.MaxElapsedTime = 0

	i.mu.Lock()
	i.accepting = true
	i.mu.Unlock()

	err := backoff.RetryNotify(func() error {
		return i.transport.Subscribe(i.topic, i.opts.QoS, i.onMessage)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		slog.Warn("subscribe failed, retrying",
			slog.String("topic", i.topic),
			slog.Duration("retry_in", wait),
			slog.Any("error", err))
	})
	if err != nil {
		return err
	}

	i.transition(StateSubscribed)
	return nil
}

// transitionFrom moves to next only while the ingestor is still in from, so a
// late transport callback cannot undo a shutdown in progress.
func (i *PacketIngestor) transitionFrom(from, next State) bool {
	if !i.state.moveIf(from, next) {
		return false
	}

	slog.Info("ingestor state changed",
		slog.String("from", from.String()),
		slog.String("to", next.String()),
		slog.String("topic", i.topic))
	return true
}

func (i *PacketIngestor) onConnection(connected bool, err error) {
	if !connected {
		if i.transitionFrom(StateSubscribed, StateDisconnected) {
			slog.Warn("ingestor transport lost, reconnecting",
				slog.String("topic", i.topic),
				slog.Any("error", err))
		}
		return
	}

	i.mu.Lock()
	accepting := i.accepting
	i.mu.Unlock()
	if accepting {
		i.transitionFrom(StateDisconnected, StateSubscribed)
	}
}

func (i *PacketIngestor) onMessage(_ mqtt.Client, msg mqtt.Message) {
	i.mu.Lock()
	if !i.accepting {
		i.mu.Unlock()
		slog.Debug("message ignored while stopping", slog.String("topic", msg.Topic()))
		return
	}
	i.inflight.Add(1)
	ctx := i.callbacks
	i.mu.Unlock()
	defer i.inflight.Done()

	// failures are logged and counted inside HandleMessage
	_, _ = i.HandleMessage(ctx, msg.Topic(), msg.Payload())
}

// stop runs the shutdown sequence: no new messages, in-flight callbacks
// finish, the sink queue drains, then the transport closes.
func (i *PacketIngestor) stop(abort context.CancelFunc) {
	i.transition(StateStopping)

	i.mu.Lock()
	i.accepting = false
	i.mu.Unlock()

	if err := i.transport.Unsubscribe(i.topic); err != nil {
		slog.Warn("unsubscribe failed", slog.String("topic", i.topic), slog.Any("error", err))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), i.opts.DrainTimeout)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		i.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-drainCtx.Done():
		slog.Warn("in-flight messages did not finish in time, aborting them",
			slog.Duration("drain_timeout", i.opts.DrainTimeout))
		abort()
	}

	if err := i.dispatcher.Close(drainCtx); err != nil {
		slog.Error("sink queue not drained", slog.Any("error", err))
	}

	i.transport.Disconnect()
	i.transition(StateDisconnected)
	slog.Info("packet ingestor stopped", slog.String("topic", i.topic))
}

// HandleMessage processes one readings message end to end. The returned error
// is the packet-level failure, if any; channel-level failures only show up
// as Skipped in the summary.
func (i *PacketIngestor) HandleMessage(ctx context.Context, topic string, payload []byte) (summary Summary, err error) {
	started := time.Now()
	stage := StageDecoding

	ctx, span := i.tracer.Start(ctx, "ingest-packet", trace.WithAttributes(attribute.String("topic", topic)))
	defer span.End()

	i.metrics.packetReceived(ctx)
	defer func() {
		if r := recover(); r != nil {
			err = i.reject(ctx, span, ReasonPanic, stage, topic, summary.DeviceID, fmt.Errorf("panic: %v", r))
		}
		i.metrics.packetHandled(ctx, time.Since(started).Seconds())
	}()

	packet, err := DecodePacket(i.opts.HardwareLine, topic, payload, i.opts.Clock())
	if err != nil {
		reason := ReasonDecode
		if errors.Is(err, ErrInvalidTopic) {
			reason = ReasonInvalidTopic
		}
		return summary, i.reject(ctx, span, reason, stage, topic, "", err)
	}
	summary.DeviceID = packet.DeviceID
	span.SetAttributes(attribute.String("device_id", packet.DeviceID))

	stage = StageResolving
	hardwareID, err := i.directory.ResolveHardwareVariant(ctx, packet.DeviceID)
	if err != nil {
		reason := ReasonDirectory
		if errors.Is(err, ErrDeviceNotFound) {
			reason = ReasonDeviceNotFound
		}
		return summary, i.reject(ctx, span, reason, stage, topic, packet.DeviceID, err)
	}
	summary.HardwareID = hardwareID

	calibrator, err := i.registry.Resolve(hardwareID)
	if err != nil {
		return summary, i.reject(ctx, span, ReasonUnknownHardware, stage, topic, packet.DeviceID, err)
	}

	channels := calibrator.ChannelMap()
	for _, entry := range packet.Entries {
		stage = StageConverting
		reading, ok := i.convert(ctx, packet.DeviceID, calibrator, channels, entry)
		if !ok {
			summary.Skipped++
			continue
		}

		stage = StageDispatching
		if err := i.dispatcher.Dispatch(ctx, reading); err != nil {
			slog.Error("reading not dispatched",
				slog.String("stage", stage),
				slog.String("device_id", packet.DeviceID),
				slog.String("sensor", string(reading.Sensor)),
				slog.Any("error", err))
			summary.Skipped++
			continue
		}
		summary.Dispatched++
	}

	span.SetAttributes(
		attribute.String("hardware_id", string(hardwareID)),
		attribute.Int("readings.dispatched", summary.Dispatched),
		attribute.Int("readings.skipped", summary.Skipped))
	return summary, nil
}

func (i *PacketIngestor) convert(
	ctx context.Context,
	deviceID string,
	calibrator calibration.Calibrator,
	channels calibration.ChannelMap,
	entry ChannelValue,
) (calibration.Reading, bool) {
	sensor, err := channels.SensorFor(entry.Channel)
	if err != nil {
		i.metrics.channelRejected(ctx, ReasonUnknownChannel)
		slog.Warn("channel skipped",
			slog.String("stage", StageConverting),
			slog.String("device_id", deviceID),
			slog.String("hardware_id", string(calibrator.HardwareID())),
			slog.Int("channel", int(entry.Channel)),
			slog.Any("error", err))
		return calibration.Reading{}, false
	}

	reading, err := calibrator.Convert(sensor, entry.Raw)
	if err != nil {
		reason := ReasonConversion
		if errors.Is(err, calibration.ErrOutOfRange) {
			reason = ReasonOutOfRange
		}
		i.metrics.channelRejected(ctx, reason)
		slog.Warn("channel skipped",
			slog.String("stage", StageConverting),
			slog.String("device_id", deviceID),
			slog.String("hardware_id", string(calibrator.HardwareID())),
			slog.Int("channel", int(entry.Channel)),
			slog.Int64("raw", entry.Raw),
			slog.Any("error", err))
		return calibration.Reading{}, false
	}

	return reading.WithOrigin(deviceID, entry.RecordedAt), true
}

func (i *PacketIngestor) reject(
	ctx context.Context,
	span trace.Span,
	reason, stage, topic, deviceID string,
	err error,
) error {
	i.metrics.packetRejected(ctx, reason)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)

	attrs := []any{
		slog.String("stage", stage),
		slog.String("reason", reason),
		slog.String("topic", topic),
		slog.Any("error", err),
	}
	if deviceID != "" {
		attrs = append(attrs, slog.String("device_id", deviceID))
	}
	slog.Error("packet skipped", attrs...)

	return err
}
