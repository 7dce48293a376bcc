package meat

import (
	"testing"

	"meatengine/internal/reference"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testSnapshot(t *testing.T) *reference.Snapshot {
	t.Helper()
	snap, err := reference.NewSnapshot(reference.Tables{
		Combos: []reference.ComboDefinition{
			{DisplayName: "Family Platter", Components: []reference.ComboComponent{
				{Protein: "Picanha", WeightPerUnit: 1.0},
				{Protein: "Chicken", WeightPerUnit: 1.0},
				{Protein: "Lamb Chops", WeightPerUnit: 0.5},
			}},
			{DisplayName: "Churrasco Plate", Components: []reference.ComboComponent{
				{Protein: "Picanha", WeightPerUnit: 0.4},
				{Protein: "Sausage", WeightPerUnit: 0.3},
				{Protein: "Chicken", WeightPerUnit: 0.3},
			}},
		},
		Yields: map[string]float64{"Picanha": 0.8, "Lamb Chops": 0.8, "Chicken": 0.95},
		Costs: map[string]decimal.Decimal{
			"Picanha":    dec("5.26"),
			"Chicken":    dec("1.86"),
			"Lamb Chops": dec("11.99"),
			"Sausage":    dec("3.66"),
		},
		Targets: map[uint]map[string]reference.Target{
			1: {"Picanha": {WeightPerGuest: 1.5}, "Chicken": {WeightPerGuest: 0.25}},
			2: {"Picanha": {WeightPerGuest: 0.5}},
			3: {"Picanha": {WeightPerGuest: 0.5}, "Bacon": {WeightPerGuest: 0.05}},
		},
	})
	require.NoError(t, err)
	return snap
}
