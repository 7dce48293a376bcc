package meat

import (
	"fmt"

	"meatengine/internal/reference"
)

type Direction int

const (
	RawToServed Direction = iota
	ServedToRaw
)

func (d Direction) String() string {
	switch d {
	case RawToServed:
		return "RAW_TO_SERVED"
	case ServedToRaw:
		return "SERVED_TO_RAW"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// AdjustYield converts between as-received and servable weight.
func AdjustYield(snap *reference.Snapshot, protein string, weight float64, dir Direction) (float64, error) {
	y, err := snap.Yield(protein)
	if err != nil {
		return 0, err
	}
	switch dir {
	case RawToServed:
		return weight * y, nil
	case ServedToRaw:
		return weight / y, nil
	}
	return 0, fmt.Errorf("unknown yield direction %v", dir)
}
