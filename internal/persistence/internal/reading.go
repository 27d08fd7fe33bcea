package internal

import (
	"time"

	"sensekit-server/internal/calibration"

	"github.com/google/uuid"
)

type Reading struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	DeviceID   string    `json:"device_id" gorm:"index:idx_readings_device_recorded,priority:1"`
	HardwareID string    `json:"hardware_id"`
	Sensor     string    `json:"sensor"`
	Channel    int       `json:"channel"`
	Kind       string    `json:"kind"`
	Raw        int64     `json:"raw"`
	Value      *float64  `json:"value,omitempty"`
	Secondary  *float64  `json:"secondary,omitempty"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index:idx_readings_device_recorded,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Reading) TableName() string {
	return "readings"
}

func FromReading(value calibration.Reading) Reading {
	return Reading{
		ID:         uuid.NewString(),
		DeviceID:   value.DeviceID,
		HardwareID: string(value.HardwareID),
		Sensor:     string(value.Sensor),
		Channel:    int(value.Channel),
		Kind:       string(value.Kind),
		Raw:        value.Raw,
		Value:      value.Value,
		Secondary:  value.Secondary,
		RecordedAt: value.RecordedAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
}

func (r Reading) ToDomain() calibration.Reading {
	return calibration.Reading{
		DeviceID:   r.DeviceID,
		HardwareID: calibration.HardwareID(r.HardwareID),
		Sensor:     calibration.SensorType(r.Sensor),
		Channel:    calibration.Channel(r.Channel),
		Kind:       calibration.FormulaKind(r.Kind),
		Raw:        r.Raw,
		Value:      r.Value,
		Secondary:  r.Secondary,
		RecordedAt: r.RecordedAt,
	}
}
