package calibration

import "fmt"

const _registerSpan = 65536.0

// Formula is one of the conversion classes a variant applies to a sensor.
type Formula struct {
	kind    FormulaKind
	table   *LookupTable
	scale   float64
	offset  float64
	divisor float64
}

func LookupFormula(table *LookupTable) Formula {
	return Formula{kind: FormulaLookup, table: table}
}

// LinearFormula converts a 16 bit register: (scale / 65536) * raw + offset.
func LinearFormula(scale, offset float64) Formula {
	return Formula{kind: FormulaLinear, scale: scale, offset: offset}
}

func ScaledFormula(divisor float64) Formula {
	return Formula{kind: FormulaScaled, divisor: divisor}
}

func PassthroughFormula() Formula {
	return Formula{kind: FormulaPassthrough}
}

func (f Formula) Kind() FormulaKind {
	return f.kind
}

func (f Formula) validate() error {
	switch f.kind {
	case FormulaLookup:
		if f.table == nil {
			return fmt.Errorf("%w: lookup formula without table", ErrInvalidTable)
		}
	case FormulaScaled:
		if f.divisor == 0 {
			return fmt.Errorf("%w: scaled formula with zero divisor", ErrInvalidProfile)
		}
	case FormulaLinear, FormulaPassthrough:
	default:
		return fmt.Errorf("%w: unknown formula kind %q", ErrInvalidProfile, f.kind)
	}
	return nil
}

func (f Formula) apply(raw int64) (value *float64, secondary *float64, err error) {
	switch f.kind {
	case FormulaLookup:
		v, err := f.table.Lookup(raw)
		if err != nil {
			return nil, nil, err
		}
		return &v, nil, nil
	case FormulaLinear:
		v := (f.scale/_registerSpan)*float64(raw) + f.offset
		return &v, nil, nil
	case FormulaScaled:
		v := float64(raw)
		s := float64(raw) / f.divisor
		return &v, &s, nil
	default:
		return nil, nil, nil
	}
}
