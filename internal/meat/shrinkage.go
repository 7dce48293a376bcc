package meat

import (
	"errors"
	"sort"

	"meatengine/internal/reference"

	"github.com/shopspring/decimal"
)

// ShrinkageLine compares what sales say was used with what the counts say
// was used. Positive shrinkage is meat that left the walk-in unaccounted for.
type ShrinkageLine struct {
	Protein       string          `json:"protein"`
	Theoretical   float64         `json:"theoretical"`
	Actual        float64         `json:"actual"`
	Shrinkage     float64         `json:"shrinkage"`
	ShrinkagePct  *float64        `json:"shrinkage_pct"`
	ShrinkageCost decimal.Decimal `json:"shrinkage_cost"`
}

// Shrinkage lines up theoretical (sales) and actual (inventory) raw weight
// per protein. Proteins that cannot be priced are reported as gaps.
func Shrinkage(snap *reference.Snapshot, storeID uint, theoretical, actual map[string]float64) ([]ShrinkageLine, []*ConfigGapError) {
	proteins := make([]string, 0, len(theoretical)+len(actual))
	for p := range theoretical {
		proteins = append(proteins, p)
	}
	for p := range actual {
		if _, ok := theoretical[p]; !ok {
			proteins = append(proteins, p)
		}
	}
	sort.Strings(proteins)

	var (
		lines []ShrinkageLine
		gaps  []*ConfigGapError
	)
	for _, p := range proteins {
		l := ShrinkageLine{Protein: p, Theoretical: theoretical[p], Actual: actual[p]}
		l.Shrinkage = l.Actual - l.Theoretical
		if l.Actual > 0 {
			pct := l.Shrinkage / l.Actual * 100
			l.ShrinkagePct = &pct
		}
		cost, err := Price(snap, p, l.Shrinkage)
		if err != nil {
			var gap *ConfigGapError
			if errors.As(gapFor(storeID, p, err), &gap) {
				gaps = append(gaps, gap)
			}
			continue
		}
		l.ShrinkageCost = cost
		lines = append(lines, l)
	}
	return lines, gaps
}
