package ingestion

import (
	"context"

	"sensekit-server/internal/calibration"
)

//go:generate mockgen -source=port.go -destination=../../test/unit/doubles/ingestion/port_mock.go -package=ingestion -mock_names=ReadingSink=MockReadingSink,DeviceDirectory=MockDeviceDirectory,CalibratorResolver=MockCalibratorResolver

// ReadingSink persists or forwards calibrated readings. It owns the reading
// once Store is called.
type ReadingSink interface {
	Store(ctx context.Context, reading calibration.Reading) error
}

type DeviceDirectory interface {
	// ResolveHardwareVariant fails with ErrDeviceNotFound for unknown devices.
	ResolveHardwareVariant(ctx context.Context, deviceID string) (calibration.HardwareID, error)
}

type CalibratorResolver interface {
	Resolve(id calibration.HardwareID) (calibration.Calibrator, error)
}

var _ CalibratorResolver = (*calibration.Registry)(nil)
