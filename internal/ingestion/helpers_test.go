package ingestion_test

import (
	"context"
	"errors"
	"sync"

	"sensekit-server/internal/calibration"
	"sensekit-server/internal/ingestion"

	"github.com/onsi/gomega"
	"go.opentelemetry.io/otel/metric/noop"
)

var errSinkDown = errors.New("sink down")

func newMetrics() *ingestion.Metrics {
	metrics, err := ingestion.NewMetrics(noop.NewMeterProvider().Meter("test"))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return metrics
}

// recordingSink keeps every stored reading. failures makes the next N calls
// fail; gate, when set, blocks every call until it is closed.
type recordingSink struct {
	mu       sync.Mutex
	readings []calibration.Reading
	calls    int
	failures int
	gate     chan struct{}
}

func (s *recordingSink) Store(ctx context.Context, reading calibration.Reading) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errSinkDown
	}
	s.readings = append(s.readings, reading)
	return nil
}

func (s *recordingSink) Stored() []calibration.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]calibration.Reading(nil), s.readings...)
}

func (s *recordingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func reading(deviceID string, raw int64) calibration.Reading {
	return calibration.Reading{DeviceID: deviceID, Sensor: calibration.SensorBat, Raw: raw, Kind: calibration.FormulaPassthrough}
}
