package calibration

import (
	"fmt"
	"strings"
)

// Profile describes a hardware variant declared in configuration.
type Profile struct {
	HardwareID string
	Aliases    []string
	Channels   map[string]int
	Formulas   map[string]FormulaSpec
}

type FormulaSpec struct {
	Type    string
	Scale   float64
	Offset  float64
	Divisor float64
	Table   []Threshold
}

func NewProfileVariant(profile Profile) (*Variant, error) {
	id := HardwareID(strings.TrimSpace(profile.HardwareID))
	if id == "" {
		return nil, fmt.Errorf("%w: missing hardware id", ErrInvalidProfile)
	}

	channels := make(map[SensorType]Channel, len(profile.Channels))
	for name, address := range profile.Channels {
		sensor, err := ParseSensorType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProfile, id, err)
		}
		channels[sensor] = Channel(address)
	}

	channelMap, err := NewChannelMap(channels)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}

	formulas := make(map[SensorType]Formula, len(profile.Formulas))
	for name, spec := range profile.Formulas {
		sensor, err := ParseSensorType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProfile, id, err)
		}

		formula, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("profile %s sensor %s: %w", id, sensor, err)
		}
		formulas[sensor] = formula
	}

	return NewVariant(id, channelMap, formulas)
}

func (s FormulaSpec) build() (Formula, error) {
	switch FormulaKind(strings.ToLower(s.Type)) {
	case FormulaLookup:
		table, err := NewLookupTable(s.Table)
		if err != nil {
			return Formula{}, err
		}
		return LookupFormula(table), nil
	case FormulaLinear:
		if s.Scale == 0 {
			return Formula{}, fmt.Errorf("%w: linear formula without scale", ErrInvalidProfile)
		}
		return LinearFormula(s.Scale, s.Offset), nil
	case FormulaScaled:
		return ScaledFormula(s.Divisor), nil
	case FormulaPassthrough, "":
		return PassthroughFormula(), nil
	default:
		return Formula{}, fmt.Errorf("%w: unknown formula type %q", ErrInvalidProfile, s.Type)
	}
}
