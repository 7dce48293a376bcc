package meat

import (
	"fmt"

	"meatengine/internal/reference"

	"github.com/shopspring/decimal"
)

// Price returns weight * cost per lb. A protein without a cost entry is an
// error, never a zero.
func Price(snap *reference.Snapshot, protein string, weight float64) (decimal.Decimal, error) {
	perLb, ok := snap.Cost(protein)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMissingCostEntry, protein)
	}
	return decimal.NewFromFloat(weight).Mul(perLb), nil
}
