package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"sensekit-server/internal/calibration"

	"github.com/vmihailenco/msgpack/v5"
)

// ChannelValue is one raw register value as it arrived on the wire.
type ChannelValue struct {
	Channel    calibration.Channel
	Raw        int64
	RecordedAt time.Time
}

// RawPacket lives only for the duration of one message callback.
type RawPacket struct {
	Topic    string
	DeviceID string
	Entries  []ChannelValue
}

type wirePayload struct {
	Data []wireBatch `json:"data" msgpack:"data"`
}

type wireBatch struct {
	RecordedAt string       `json:"recorded_at" msgpack:"recorded_at"`
	Sensors    []wireSensor `json:"sensors" msgpack:"sensors"`
}

type wireSensor struct {
	ID    *wireInt `json:"id" msgpack:"id"`
	Value *wireInt `json:"value" msgpack:"value"`
}

// wireInt is a signed 64-bit integer on the wire. encoding/json already
// rejects fractions and overflow for it; MessagePack needs the same checks.
type wireInt int64

var _ msgpack.CustomDecoder = (*wireInt)(nil)

func (v *wireInt) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}

	switch n := raw.(type) {
	case int64:
		*v = wireInt(n)
	case uint64:
		if n > math.MaxInt64 {
			return fmt.Errorf("integer %d overflows int64", n)
		}
		*v = wireInt(n)
	case int8:
		*v = wireInt(n)
	case int16:
		*v = wireInt(n)
	case int32:
		*v = wireInt(n)
	case uint8:
		*v = wireInt(n)
	case uint16:
		*v = wireInt(n)
	case uint32:
		*v = wireInt(n)
	default:
		return fmt.Errorf("want an integer, got %T", raw)
	}

	return nil
}

// DecodePayload reads the readings envelope, JSON or MessagePack:
//
//	{"data":[{"recorded_at":"2024-03-01T12:00:00Z","sensors":[{"id":12,"value":26000}]}]}
//
// Batches without recorded_at are stamped with receivedAt.
func DecodePayload(payload []byte, receivedAt time.Time) ([]ChannelValue, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	var envelope wirePayload
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: json: %w", ErrDecode, err)
		}
	} else {
		if err := msgpack.Unmarshal(payload, &envelope); err != nil {
			return nil, fmt.Errorf("%w: msgpack: %w", ErrDecode, err)
		}
	}

	entries := make([]ChannelValue, 0, len(envelope.Data))
	for i, batch := range envelope.Data {
		recordedAt := receivedAt
		if batch.RecordedAt != "" {
			parsed, err := time.Parse(time.RFC3339, batch.RecordedAt)
			if err != nil {
				return nil, fmt.Errorf("%w: batch %d recorded_at: %w", ErrDecode, i, err)
			}
			recordedAt = parsed.UTC()
		}

		for j, sensor := range batch.Sensors {
			if sensor.ID == nil || sensor.Value == nil {
				return nil, fmt.Errorf("%w: batch %d sensor %d: missing id or value", ErrDecode, i, j)
			}
			if *sensor.ID < 0 {
				return nil, fmt.Errorf("%w: batch %d sensor %d: negative channel %d", ErrDecode, i, j, *sensor.ID)
			}
			entries = append(entries, ChannelValue{
				Channel:    calibration.Channel(*sensor.ID),
				Raw:        int64(*sensor.Value),
				RecordedAt: recordedAt,
			})
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no readings in payload", ErrDecode)
	}

	return entries, nil
}

func DecodePacket(hardwareLine, topic string, payload []byte, receivedAt time.Time) (RawPacket, error) {
	deviceID, err := DeviceIDFromTopic(hardwareLine, topic)
	if err != nil {
		return RawPacket{}, err
	}

	entries, err := DecodePayload(payload, receivedAt)
	if err != nil {
		return RawPacket{}, err
	}

	return RawPacket{Topic: topic, DeviceID: deviceID, Entries: entries}, nil
}
