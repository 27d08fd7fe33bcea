package calibration

import (
	"fmt"
	"maps"
	"slices"
)

type SensorType string

const (
	SensorNoise SensorType = "noise"
	SensorLight SensorType = "light"
	SensorPanel SensorType = "panel"
	SensorCO    SensorType = "co"
	SensorBat   SensorType = "bat"
	SensorHum   SensorType = "hum"
	SensorNO2   SensorType = "no2"
	SensorNets  SensorType = "nets"
	SensorTemp  SensorType = "temp"
)

var knownSensorTypes = []SensorType{
	SensorNoise,
	SensorLight,
	SensorPanel,
	SensorCO,
	SensorBat,
	SensorHum,
	SensorNO2,
	SensorNets,
	SensorTemp,
}

func (t SensorType) String() string {
	return string(t)
}

func ParseSensorType(value string) (SensorType, error) {
	sensor := SensorType(value)
	if !slices.Contains(knownSensorTypes, sensor) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSensorType, value)
	}

	return sensor, nil
}

// Channel is the slot a sensor occupies inside a device payload.
type Channel int

// ChannelMap binds every sensor of a hardware variant to its payload channel.
// It is immutable once built; addresses are unique within a map.
type ChannelMap struct {
	byType    map[SensorType]Channel
	byChannel map[Channel]SensorType
}

func NewChannelMap(channels map[SensorType]Channel) (ChannelMap, error) {
	if len(channels) == 0 {
		return ChannelMap{}, fmt.Errorf("%w: no channels", ErrInvalidChannelMap)
	}

	byType := make(map[SensorType]Channel, len(channels))
	byChannel := make(map[Channel]SensorType, len(channels))
	for sensor, channel := range channels {
		if !slices.Contains(knownSensorTypes, sensor) {
			return ChannelMap{}, fmt.Errorf("%w: %w: %q", ErrInvalidChannelMap, ErrUnknownSensorType, sensor)
		}
		if channel < 0 {
			return ChannelMap{}, fmt.Errorf("%w: negative channel %d for %s", ErrInvalidChannelMap, channel, sensor)
		}
		if other, exists := byChannel[channel]; exists {
			return ChannelMap{}, fmt.Errorf("%w: channel %d used by %s and %s", ErrInvalidChannelMap, channel, other, sensor)
		}
		byType[sensor] = channel
		byChannel[channel] = sensor
	}

	return ChannelMap{byType: byType, byChannel: byChannel}, nil
}

func (m ChannelMap) Channel(sensor SensorType) (Channel, bool) {
	channel, ok := m.byType[sensor]
	return channel, ok
}

func (m ChannelMap) SensorFor(channel Channel) (SensorType, error) {
	sensor, ok := m.byChannel[channel]
	if !ok {
		return "", fmt.Errorf("%w: channel %d", ErrUnknownSensorChannel, channel)
	}

	return sensor, nil
}

func (m ChannelMap) Has(sensor SensorType) bool {
	_, ok := m.byType[sensor]
	return ok
}

// Sensors returns the mapped sensor types ordered by channel.
func (m ChannelMap) Sensors() []SensorType {
	channels := slices.Sorted(maps.Keys(m.byChannel))
	sensors := make([]SensorType, 0, len(channels))
	for _, channel := range channels {
		sensors = append(sensors, m.byChannel[channel])
	}
	return sensors
}

func (m ChannelMap) Len() int {
	return len(m.byType)
}
