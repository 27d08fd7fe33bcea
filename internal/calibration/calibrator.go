package calibration

import "fmt"

type HardwareID string

func (id HardwareID) String() string {
	return string(id)
}

// Calibrator is the capability set every hardware variant exposes.
type Calibrator interface {
	HardwareID() HardwareID
	ChannelMap() ChannelMap
	Convert(sensor SensorType, raw int64) (Reading, error)
}

var _ Calibrator = (*Variant)(nil)

// Variant is a hardware revision: its channel map plus the formula used for
// each mapped sensor. Mapped sensors without a formula are passed through.
type Variant struct {
	id       HardwareID
	channels ChannelMap
	formulas map[SensorType]Formula
}

func NewVariant(id HardwareID, channels ChannelMap, formulas map[SensorType]Formula) (*Variant, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty hardware id", ErrInvalidProfile)
	}
	if channels.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has no channels", ErrInvalidChannelMap, id)
	}

	owned := make(map[SensorType]Formula, len(formulas))
	for sensor, formula := range formulas {
		if !channels.Has(sensor) {
			return nil, fmt.Errorf("%w: %s defines a formula for unmapped sensor %s", ErrInvalidProfile, id, sensor)
		}
		if err := formula.validate(); err != nil {
			return nil, fmt.Errorf("%s %s: %w", id, sensor, err)
		}
		owned[sensor] = formula
	}

	return &Variant{id: id, channels: channels, formulas: owned}, nil
}

func (v *Variant) HardwareID() HardwareID {
	return v.id
}

func (v *Variant) ChannelMap() ChannelMap {
	return v.channels
}

func (v *Variant) FormulaFor(sensor SensorType) FormulaKind {
	formula, ok := v.formulas[sensor]
	if !ok {
		return FormulaPassthrough
	}
	return formula.Kind()
}

func (v *Variant) Convert(sensor SensorType, raw int64) (Reading, error) {
	channel, ok := v.channels.Channel(sensor)
	if !ok {
		return Reading{}, fmt.Errorf("%w: %s is not mapped on %s", ErrUnknownSensorChannel, sensor, v.id)
	}

	formula, ok := v.formulas[sensor]
	if !ok {
		formula = PassthroughFormula()
	}

	value, secondary, err := formula.apply(raw)
	if err != nil {
		return Reading{}, fmt.Errorf("converting %s on %s: %w", sensor, v.id, err)
	}

	return Reading{
		HardwareID: v.id,
		Sensor:     sensor,
		Channel:    channel,
		Kind:       formula.Kind(),
		Raw:        raw,
		Value:      value,
		Secondary:  secondary,
	}, nil
}
