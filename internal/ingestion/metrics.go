package ingestion

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const _meterPrefix = "sensekit_server"

// Reasons a packet or a single channel is rejected.
const (
	ReasonInvalidTopic    = "invalid_topic"
	ReasonDecode          = "decode"
	ReasonDeviceNotFound  = "device_not_found"
	ReasonDirectory       = "directory"
	ReasonUnknownHardware = "unknown_hardware"
	ReasonUnknownChannel  = "unknown_channel"
	ReasonOutOfRange      = "out_of_range"
	ReasonConversion      = "conversion"
	ReasonPanic           = "panic"
)

type Metrics struct {
	meter              metric.Meter
	packetsReceived    metric.Int64Counter
	packetsRejected    metric.Int64Counter
	channelsRejected   metric.Int64Counter
	readingsDispatched metric.Int64Counter
	readingsStored     metric.Int64Counter
	readingsDropped    metric.Int64Counter
	sinkFailures       metric.Int64Counter
	packetDuration     metric.Float64Histogram
}

func metricName(instrument string) string {
	return fmt.Sprintf("%s.%s", _meterPrefix, instrument)
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}

	var err error
	if m.packetsReceived, err = meter.Int64Counter(metricName("ingestion.packets.received"),
		metric.WithDescription("Packets received from the transport")); err != nil {
		return nil, err
	}
	if m.packetsRejected, err = meter.Int64Counter(metricName("ingestion.packets.rejected"),
		metric.WithDescription("Packets dropped before calibration, by reason")); err != nil {
		return nil, err
	}
	if m.channelsRejected, err = meter.Int64Counter(metricName("ingestion.channels.rejected"),
		metric.WithDescription("Single channels skipped inside an accepted packet, by reason")); err != nil {
		return nil, err
	}
	if m.readingsDispatched, err = meter.Int64Counter(metricName("ingestion.readings.dispatched"),
		metric.WithDescription("Calibrated readings queued for the sinks")); err != nil {
		return nil, err
	}
	if m.readingsStored, err = meter.Int64Counter(metricName("ingestion.readings.stored"),
		metric.WithDescription("Readings accepted by a sink")); err != nil {
		return nil, err
	}
	if m.readingsDropped, err = meter.Int64Counter(metricName("ingestion.readings.dropped"),
		metric.WithDescription("Readings lost because the queue was full")); err != nil {
		return nil, err
	}
	if m.sinkFailures, err = meter.Int64Counter(metricName("ingestion.sink.failures"),
		metric.WithDescription("Readings a sink refused after every retry")); err != nil {
		return nil, err
	}
	if m.packetDuration, err = meter.Float64Histogram(metricName("ingestion.packet.duration.seconds"),
		metric.WithDescription("Time spent handling one packet"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveQueueDepth reports the sink queue length on every collection.
func (m *Metrics) ObserveQueueDepth(depth func() int) error {
	_, err := m.meter.Int64ObservableGauge(metricName("ingestion.queue.depth"),
		metric.WithDescription("Readings waiting for a sink worker"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(int64(depth()))
			return nil
		}))
	return err
}

func (m *Metrics) packetReceived(ctx context.Context) {
	m.packetsReceived.Add(ctx, 1)
}

func (m *Metrics) packetRejected(ctx context.Context, reason string) {
	m.packetsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) channelRejected(ctx context.Context, reason string) {
	m.channelsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) readingDispatched(ctx context.Context) {
	m.readingsDispatched.Add(ctx, 1)
}

func (m *Metrics) readingStored(ctx context.Context, sink string) {
	m.readingsStored.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func (m *Metrics) readingDropped(ctx context.Context) {
	m.readingsDropped.Add(ctx, 1)
}

func (m *Metrics) sinkFailed(ctx context.Context, sink string) {
	m.sinkFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

func (m *Metrics) packetHandled(ctx context.Context, seconds float64) {
	m.packetDuration.Record(ctx, seconds)
}
