package calibration

import (
	"fmt"
	"sort"
)

type Threshold struct {
	Raw    int64
	Output float64
}

// LookupTable is a step function from raw readings to calibrated outputs.
// Thresholds are strictly ascending and the table never changes after NewLookupTable.
type LookupTable struct {
	thresholds []Threshold
}

func NewLookupTable(pairs []Threshold) (*LookupTable, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: table is empty", ErrInvalidTable)
	}

	thresholds := make([]Threshold, len(pairs))
	copy(thresholds, pairs)
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i].Raw <= thresholds[i-1].Raw {
			return nil, fmt.Errorf("%w: threshold %d at position %d does not follow %d",
				ErrInvalidTable, thresholds[i].Raw, i, thresholds[i-1].Raw)
		}
	}

	return &LookupTable{thresholds: thresholds}, nil
}

// Lookup returns the output bound to the greatest threshold not above raw.
func (t *LookupTable) Lookup(raw int64) (float64, error) {
	// index of the first threshold strictly greater than raw
	index := sort.Search(len(t.thresholds), func(i int) bool {
		return t.thresholds[i].Raw > raw
	})
	if index == 0 {
		return 0, fmt.Errorf("%w: %d < %d", ErrOutOfRange, raw, t.thresholds[0].Raw)
	}

	return t.thresholds[index-1].Output, nil
}
