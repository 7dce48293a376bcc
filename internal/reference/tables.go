// Package reference holds the static lookup data the reconciliation engine
// runs on: combo decomposition, yields, cost per pound and per-store targets.
//
// All of it is gathered into an immutable Snapshot. Reloading builds a new
// Snapshot and swaps it into a Holder; nothing is mutated in place.
package reference

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidYield     = errors.New("invalid yield")
	ErrInvalidCombo     = errors.New("invalid combo definition")
	ErrInvalidCost      = errors.New("invalid cost entry")
	ErrInvalidTarget    = errors.New("invalid meat target")
	ErrAmbiguousProtein = errors.New("ambiguous protein key")
)

// ComboComponent is one protein inside a combo, in lbs per unit sold.
type ComboComponent struct {
	Protein       string  `yaml:"protein"`
	WeightPerUnit float64 `yaml:"weight"`
}

// ComboDefinition is a sellable item that decomposes into fixed protein weights.
type ComboDefinition struct {
	DisplayName string           `yaml:"name"`
	Components  []ComboComponent `yaml:"components"`
}

// Target is the expected raw consumption per guest for one protein.
type Target struct {
	WeightPerGuest float64
	CostPerGuest   *decimal.Decimal
}

// Tables is the raw, unvalidated input to NewSnapshot.
type Tables struct {
	Combos  []ComboDefinition
	Yields  map[string]float64
	Costs   map[string]decimal.Decimal
	Targets map[uint]map[string]Target
	// Proxies maps an unmeasured store to the store whose targets it borrows.
	Proxies map[uint]uint
}
