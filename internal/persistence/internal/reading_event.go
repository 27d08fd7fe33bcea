package internal

import (
	"time"

	"sensekit-server/internal/calibration"

	"github.com/google/uuid"
)

const ReadingEventSchema = `{
	"type": "record",
	"name": "Reading",
	"namespace": "sensekit.readings",
	"fields": [
		{"name": "id", "type": "string"},
		{"name": "device_id", "type": "string"},
		{"name": "hardware_id", "type": "string"},
		{"name": "sensor", "type": "string"},
		{"name": "channel", "type": "int"},
		{"name": "kind", "type": "string"},
		{"name": "raw", "type": "long"},
		{"name": "value", "type": ["null", "double"], "default": null},
		{"name": "secondary", "type": ["null", "double"], "default": null},
		{"name": "recorded_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

// ReadingEvent is the Avro record published for every calibrated reading.
type ReadingEvent struct {
	ID         string    `avro:"id"`
	DeviceID   string    `avro:"device_id"`
	HardwareID string    `avro:"hardware_id"`
	Sensor     string    `avro:"sensor"`
	Channel    int       `avro:"channel"`
	Kind       string    `avro:"kind"`
	Raw        int64     `avro:"raw"`
	Value      *float64  `avro:"value"`
	Secondary  *float64  `avro:"secondary"`
	RecordedAt time.Time `avro:"recorded_at"`
}

func FromReadingEvent(value calibration.Reading) ReadingEvent {
	return ReadingEvent{
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
	}
}
