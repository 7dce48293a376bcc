package meat

import (
	"fmt"
	"math"

	"meatengine/internal/reference"
)

// Line is an amount of one protein, in lbs.
type Line struct {
	Protein string  `json:"protein"`
	Weight  float64 `json:"weight"`
}

// Resolver expands sold items into protein lines.
type Resolver struct {
	snap *reference.Snapshot
}

func NewResolver(snap *reference.Snapshot) *Resolver {
	return &Resolver{snap: snap}
}

// Resolve maps an item and a quantity sold to protein weights. Combos win
// over proteins; anything else is an UnrecognizedItemError.
func (r *Resolver) Resolve(item string, quantity float64) ([]Line, error) {
	if quantity < 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return nil, fmt.Errorf("%w: %v of %q", ErrInvalidQuantity, quantity, item)
	}

	if combo, ok := r.snap.Combo(item); ok {
		lines := make([]Line, len(combo.Components))
		for i, c := range combo.Components {
			lines[i] = Line{Protein: c.Protein, Weight: quantity * c.WeightPerUnit}
		}
		return lines, nil
	}

	if protein, ok := r.snap.Protein(item); ok {
		return []Line{{Protein: protein, Weight: quantity}}, nil
	}

	return nil, &UnrecognizedItemError{Item: item}
}
