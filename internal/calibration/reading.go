package calibration

import "time"

type FormulaKind string

const (
	FormulaLookup      FormulaKind = "lookup"
	FormulaLinear      FormulaKind = "linear"
	FormulaScaled      FormulaKind = "scaled"
	FormulaPassthrough FormulaKind = "passthrough"
)

// Reading is the immutable result of calibrating one raw value.
//
// Value is nil for passthrough channels. Scaled sensors keep the raw value as
// Value and carry the divided value in Secondary; consumers need both.
type Reading struct {
	DeviceID   string
	HardwareID HardwareID
	Sensor     SensorType
	Channel    Channel
	Kind       FormulaKind
	Raw        int64
	Value      *float64
	Secondary  *float64
	RecordedAt time.Time
}

// WithOrigin returns a copy of the reading bound to a device and a timestamp.
func (r Reading) WithOrigin(deviceID string, recordedAt time.Time) Reading {
	r.DeviceID = deviceID
	r.RecordedAt = recordedAt
	return r
}

func (r Reading) IsCalibrated() bool {
	return r.Value != nil
}
