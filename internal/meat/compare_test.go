package meat

import (
	"errors"
	"testing"

	"meatengine/internal/models"
	"meatengine/internal/reference"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var week9 = Period{Year: 2026, Week: 9}

func TestComparePicanhaOverTarget(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	tally := c.Tally([]UsageInput{
		{StoreID: 1, Item: "Picanha", Quantity: 100, Source: models.UsageSourceManual},
		{StoreID: 1, Item: "picanha", Quantity: 24.5, Source: models.UsageSourceManual},
	})

	res, err := c.Compare(1, "Picanha", week9, 80, tally)
	require.NoError(t, err)

	assert.Equal(t, "2026-W09", res.Period)
	assert.InDelta(t, 124.5, res.ActualWeight, 1e-9)
	assert.InDelta(t, 120.0, res.TargetWeight, 1e-9)
	assert.InDelta(t, 4.5, res.WeightVariance, 1e-9)
	assert.True(t, res.ActualCost.Equal(dec("654.87")), "actual cost %s", res.ActualCost)
	assert.True(t, res.TargetCost.Equal(dec("631.2")), "target cost %s", res.TargetCost)
	assert.True(t, res.CostVariance.Equal(dec("23.67")), "cost variance %s", res.CostVariance)
	require.NotNil(t, res.ActualPerGuest)
	assert.InDelta(t, 1.55625, *res.ActualPerGuest, 1e-9)
	assert.Equal(t, SeverityWarning, res.Severity)
}

func TestCompareSeverityBands(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	cases := []struct {
		actual float64
		want   Severity
	}{
		{100, SeverityOptimal},
		{120, SeverityOptimal},
		{125.9, SeverityWarning},
		{126.5, SeverityCritical},
	}
	for _, tc := range cases {
		tally := c.Tally([]UsageInput{{StoreID: 1, Item: "Picanha", Quantity: tc.actual, Source: models.UsageSourceManual}})
		res, err := c.Compare(1, "Picanha", week9, 80, tally)
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Severity, "actual %v", tc.actual)
	}
}

func TestCompareZeroGuestsLeavesRatioUndefined(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	tally := c.Tally([]UsageInput{{StoreID: 1, Item: "Picanha", Quantity: 30, Source: models.UsageSourceManual}})

	res, err := c.Compare(1, "Picanha", week9, 0, tally)
	require.NoError(t, err)
	assert.Nil(t, res.ActualPerGuest)
	assert.True(t, res.RatioUndefined)
	assert.Equal(t, SeverityUndefined, res.Severity)
	assert.Zero(t, res.TargetWeight)
	assert.True(t, res.CostVariance.Equal(dec("157.8")), "cost variance %s", res.CostVariance)
}

func TestCompareRejectsNegativeGuests(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	_, err := c.Compare(1, "Picanha", week9, -3, c.Tally(nil))
	assert.True(t, errors.Is(err, ErrInvalidGuestCount))

	_, err = c.CompareStore(1, week9, -3, c.Tally(nil))
	assert.True(t, errors.Is(err, ErrInvalidGuestCount))
}

func TestCompareUsageWithoutTargetIsAGap(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	tally := c.Tally([]UsageInput{{StoreID: 1, Item: "Sausage", Quantity: 5, Source: models.UsageSourceManual}})

	_, err := c.Compare(1, "Sausage", week9, 80, tally)
	var gap *ConfigGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, GapMissingTarget, gap.Kind)
	assert.Equal(t, uint(1), gap.StoreID)
	assert.Equal(t, "Sausage", gap.Protein)
	assert.True(t, errors.Is(err, ErrMissingTarget))
}

func TestCompareNoUsageNoTarget(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)

	res, err := c.Compare(1, "Sausage", week9, 80, c.Tally(nil))
	require.NoError(t, err)
	assert.True(t, res.TargetMissing)
	assert.True(t, res.CostVariance.IsZero())
	assert.Equal(t, SeverityOptimal, res.Severity)
}

func TestCompareTargetWithoutCostIsAGap(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)

	_, err := c.Compare(3, "Bacon", week9, 50, c.Tally(nil))
	var gap *ConfigGapError
	require.True(t, errors.As(err, &gap))
	assert.Equal(t, GapMissingCost, gap.Kind)
	assert.True(t, errors.Is(err, ErrMissingCostEntry))
}

func TestTallyGrossesUpSoldPortions(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	tally := c.Tally([]UsageInput{
		{StoreID: 1, Item: "Picanha", Quantity: 8, Source: models.UsageSourcePOS},
		{StoreID: 1, Item: "Picanha", Quantity: 2, Source: models.UsageSourceManual},
		{StoreID: 1, Item: "Family Platter", Quantity: 2, Source: models.UsageSourceDelivery},
		{StoreID: 2, Item: "Sausage", Quantity: 3, Source: models.UsageSourcePOS},
	})

	assert.InDelta(t, 10.0+2+2.5, tally.Weight(1, "Picanha"), 1e-9)
	assert.InDelta(t, 2/0.95, tally.Weight(1, "Chicken"), 1e-9)
	assert.InDelta(t, 1.25, tally.Weight(1, "Lamb Chops"), 1e-9)
	assert.InDelta(t, 3.0, tally.Weight(2, "Sausage"), 1e-9)
	assert.Equal(t, []string{"Chicken", "Lamb Chops", "Picanha"}, tally.Proteins(1))
	assert.Empty(t, tally.Exclusions(1))
}

func TestTallyRecordsExclusions(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	tally := c.Tally([]UsageInput{
		{StoreID: 1, Item: "Pao de Queijo", Quantity: 40, Source: models.UsageSourcePOS},
		{StoreID: 1, Item: "Picanha", Quantity: -2, Source: models.UsageSourceManual},
		{StoreID: 2, Item: "Mystery Meat", Quantity: 1, Source: models.UsageSourceManual},
	})

	ex := tally.Exclusions(1)
	require.Len(t, ex, 2)
	assert.Equal(t, "Pao de Queijo", ex[0].Item)
	assert.True(t, errors.Is(ex[0].Err(), ErrUnrecognizedItem))
	assert.True(t, errors.Is(ex[1].Err(), ErrInvalidQuantity))
	assert.Len(t, tally.Exclusions(2), 1)
	assert.Zero(t, tally.Weight(1, "Picanha"))
}

func TestCompareStoreTotalsLeaveOutGaps(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	tally := c.Tally([]UsageInput{
		{StoreID: 1, Item: "Picanha", Quantity: 124.5, Source: models.UsageSourceManual},
		{StoreID: 1, Item: "Sausage", Quantity: 5, Source: models.UsageSourceManual},
		{StoreID: 1, Item: "Pao de Queijo", Quantity: 9, Source: models.UsageSourcePOS},
	})

	res, err := c.CompareStore(1, week9, 80, tally)
	require.NoError(t, err)

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "Chicken", res.Lines[0].Protein)
	assert.Equal(t, "Picanha", res.Lines[1].Protein)
	require.Len(t, res.Gaps, 1)
	assert.Equal(t, GapMissingTarget, res.Gaps[0].Kind)
	assert.Len(t, res.Exclusions, 1)

	// Picanha +23.67, Chicken 20 lb under target at 1.86.
	assert.True(t, res.CostVariance.Equal(dec("-13.53")), "cost variance %s", res.CostVariance)
	assert.InDelta(t, 124.5, res.ActualWeight, 1e-9)
	assert.InDelta(t, 140.0, res.TargetWeight, 1e-9)
	assert.InDelta(t, -15.5, res.WeightVariance, 1e-9)
	assert.Equal(t, SeverityOptimal, res.Severity)

	var lineSum = res.Lines[0].CostVariance.Add(res.Lines[1].CostVariance)
	assert.True(t, lineSum.Equal(res.CostVariance))
}

func TestCompareStoreUsesProxyTargets(t *testing.T) {
	snap, err := reference.NewSnapshot(reference.Tables{
		Costs: map[string]decimal.Decimal{"Picanha": dec("5.26")},
		Targets: map[uint]map[string]reference.Target{
			1: {"Picanha": {WeightPerGuest: 1.5}},
		},
		Proxies: map[uint]uint{9: 1},
	})
	require.NoError(t, err)
	c := NewComparator(snap, 0.05)
	tally := c.Tally([]UsageInput{{StoreID: 9, Item: "Picanha", Quantity: 12, Source: models.UsageSourceManual}})

	res, err := c.CompareStore(9, week9, 10, tally)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.InDelta(t, 15.0, res.Lines[0].TargetWeight, 1e-9)
	assert.Empty(t, res.Gaps)
	assert.Equal(t, SeverityOptimal, res.Severity)
}
