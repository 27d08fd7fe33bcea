package calibration

import "errors"

var (
	ErrInvalidTable         = errors.New("invalid threshold table")
	ErrOutOfRange           = errors.New("raw value below minimum threshold")
	ErrInvalidChannelMap    = errors.New("invalid channel map")
	ErrUnknownSensorChannel = errors.New("unknown sensor channel")
	ErrUnknownSensorType    = errors.New("unknown sensor type")
	ErrUnknownHardware      = errors.New("unknown hardware")
	ErrInvalidProfile       = errors.New("invalid calibration profile")
)
