package meat

import (
	"testing"

	"meatengine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateTotalsEqualSumOfStores(t *testing.T) {
	c := NewComparator(testSnapshot(t), 0.05)
	tally := c.Tally([]UsageInput{
		{StoreID: 1, Item: "Picanha", Quantity: 124.5, Source: models.UsageSourceManual},
		{StoreID: 1, Item: "Chicken", Quantity: 18, Source: models.UsageSourceManual},
		{StoreID: 2, Item: "Picanha", Quantity: 40, Source: models.UsageSourcePOS},
		{StoreID: 2, Item: "Mystery Meat", Quantity: 1, Source: models.UsageSourceManual},
	})

	var stores []StoreResult
	want := decimal.Zero
	for _, s := range []struct {
		id     uint
		guests int
	}{{1, 80}, {2, 100}} {
		res, err := c.CompareStore(s.id, week9, s.guests, tally)
		require.NoError(t, err)
		stores = append(stores, res)
		for _, l := range res.Lines {
			want = want.Add(l.CostVariance)
		}
	}

	sum := Aggregate(7, week9, stores)
	assert.True(t, sum.TotalFinancialImpact.Equal(want), "impact %s want %s", sum.TotalFinancialImpact, want)
	assert.True(t, sum.TotalActualCost.Sub(sum.TotalTargetCost).Equal(want))
	assert.Equal(t, 180, sum.TotalGuests)
	assert.Equal(t, 2, sum.StoreCount)
	assert.Equal(t, 1, sum.ExcludedLines)
	assert.Equal(t, "2026-W09", sum.Period)
	require.NotNil(t, sum.AvgWeightPerGuest)
	assert.InDelta(t, (124.5+18+50)/180.0, *sum.AvgWeightPerGuest, 1e-9)
}

func TestAggregateRankingBreaksTiesByStoreID(t *testing.T) {
	stores := []StoreResult{
		{StoreID: 5, GuestCount: 10, CostVariance: dec("12.50")},
		{StoreID: 2, GuestCount: 10, CostVariance: dec("-3.00")},
		{StoreID: 4, GuestCount: 10, CostVariance: dec("12.50")},
		{StoreID: 1, GuestCount: 10, CostVariance: dec("40")},
		{StoreID: 3, GuestCount: 0, CostVariance: decimal.Zero, RatioUndefined: true},
	}

	sum := Aggregate(1, week9, stores)

	var order []uint
	for i, r := range sum.Ranking {
		assert.Equal(t, i+1, r.Rank)
		order = append(order, r.StoreID)
	}
	assert.Equal(t, []uint{1, 4, 5, 3, 2}, order)
	assert.True(t, sum.TotalFinancialImpact.Equal(dec("62")))
	assert.Equal(t, StatusLoss, sum.Status)
	assert.Equal(t, 1, sum.UndefinedRatioStores)

	require.Len(t, sum.TopSpenders, 3)
	assert.Equal(t, uint(1), sum.TopSpenders[0].StoreID)
	require.Len(t, sum.TopSavers, 1)
	assert.Equal(t, uint(2), sum.TopSavers[0].StoreID)
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	a := []StoreResult{
		{StoreID: 1, CostVariance: dec("1")},
		{StoreID: 2, CostVariance: dec("1")},
		{StoreID: 3, CostVariance: dec("-1")},
	}
	b := []StoreResult{a[2], a[1], a[0]}

	assert.Equal(t, Aggregate(1, week9, a).Ranking, Aggregate(1, week9, b).Ranking)
}

func TestAggregateEmptyNetwork(t *testing.T) {
	sum := Aggregate(1, week9, nil)
	assert.Equal(t, StatusOnTarget, sum.Status)
	assert.Nil(t, sum.AvgWeightPerGuest)
	assert.Empty(t, sum.Ranking)
	assert.NotNil(t, sum.TopSpenders)
	assert.NotNil(t, sum.TopSavers)
}
