package meat

import (
	"sort"

	"github.com/shopspring/decimal"
)

const topListSize = 10

// RankedStore is one row of the network leaderboard.
type RankedStore struct {
	Rank           int             `json:"rank"`
	StoreID        uint            `json:"store_id"`
	GuestCount     int             `json:"guest_count"`
	ActualWeight   float64         `json:"actual_weight"`
	TargetWeight   float64         `json:"target_weight"`
	WeightVariance float64         `json:"weight_variance"`
	ActualPerGuest *float64        `json:"actual_per_guest"`
	ActualCost     decimal.Decimal `json:"actual_cost"`
	CostVariance   decimal.Decimal `json:"cost_variance"`
	Severity       Severity        `json:"severity"`
}

// NetworkSummary is a company-wide projection of store results for a period.
type NetworkSummary struct {
	CompanyID            uint            `json:"company_id"`
	Period               string          `json:"period"`
	StoreCount           int             `json:"store_count"`
	TotalGuests          int             `json:"total_guests"`
	TotalActualWeight    float64         `json:"total_actual_weight"`
	TotalTargetWeight    float64         `json:"total_target_weight"`
	TotalActualCost      decimal.Decimal `json:"total_actual_cost"`
	TotalTargetCost      decimal.Decimal `json:"total_target_cost"`
	TotalFinancialImpact decimal.Decimal `json:"total_financial_impact"`
	AvgWeightPerGuest    *float64        `json:"avg_weight_per_guest"`
	Status               string          `json:"status"`
	UndefinedRatioStores int             `json:"undefined_ratio_stores"`
	ExcludedLines        int             `json:"excluded_lines"`
	ConfigGaps           int             `json:"config_gaps"`
	Ranking              []RankedStore   `json:"ranking"`
	TopSpenders          []RankedStore   `json:"top_spenders"`
	TopSavers            []RankedStore   `json:"top_savers"`
}

const (
	StatusLoss     = "loss"
	StatusSavings  = "savings"
	StatusOnTarget = "on_target"
)

// Aggregate rolls store results up to the network. The average weight per
// guest is guest-weighted so small stores cannot skew it.
func Aggregate(companyID uint, period Period, stores []StoreResult) NetworkSummary {
	sum := NetworkSummary{
		CompanyID:            companyID,
		Period:               period.String(),
		StoreCount:           len(stores),
		TotalActualCost:      decimal.Zero,
		TotalTargetCost:      decimal.Zero,
		TotalFinancialImpact: decimal.Zero,
		Ranking:              make([]RankedStore, 0, len(stores)),
	}

	for _, s := range stores {
		sum.TotalGuests += s.GuestCount
		sum.TotalActualWeight += s.ActualWeight
		sum.TotalTargetWeight += s.TargetWeight
		sum.TotalActualCost = sum.TotalActualCost.Add(s.ActualCost)
		sum.TotalTargetCost = sum.TotalTargetCost.Add(s.TargetCost)
		sum.TotalFinancialImpact = sum.TotalFinancialImpact.Add(s.CostVariance)
		sum.ExcludedLines += len(s.Exclusions)
		sum.ConfigGaps += len(s.Gaps)
		if s.RatioUndefined {
			sum.UndefinedRatioStores++
		}
		sum.Ranking = append(sum.Ranking, RankedStore{
			StoreID:        s.StoreID,
			GuestCount:     s.GuestCount,
			ActualWeight:   s.ActualWeight,
			TargetWeight:   s.TargetWeight,
			WeightVariance: s.WeightVariance,
			ActualPerGuest: s.ActualPerGuest,
			ActualCost:     s.ActualCost,
			CostVariance:   s.CostVariance,
			Severity:       s.Severity,
		})
	}
	sum.AvgWeightPerGuest, _ = perGuest(sum.TotalActualWeight, sum.TotalGuests)

	switch sign := sum.TotalFinancialImpact.Sign(); {
	case sign > 0:
		sum.Status = StatusLoss
	case sign < 0:
		sum.Status = StatusSavings
	default:
		sum.Status = StatusOnTarget
	}

	// Largest unfavourable variance first; store id breaks ties.
	sort.SliceStable(sum.Ranking, func(i, j int) bool {
		a, b := sum.Ranking[i], sum.Ranking[j]
		if c := a.CostVariance.Cmp(b.CostVariance); c != 0 {
			return c > 0
		}
		return a.StoreID < b.StoreID
	})
	for i := range sum.Ranking {
		sum.Ranking[i].Rank = i + 1
	}

	sum.TopSpenders = []RankedStore{}
	sum.TopSavers = []RankedStore{}
	for _, r := range sum.Ranking {
		if r.CostVariance.IsPositive() && len(sum.TopSpenders) < topListSize {
			sum.TopSpenders = append(sum.TopSpenders, r)
		}
	}
	for i := len(sum.Ranking) - 1; i >= 0 && len(sum.TopSavers) < topListSize; i-- {
		if r := sum.Ranking[i]; r.CostVariance.IsNegative() {
			sum.TopSavers = append(sum.TopSavers, r)
		}
	}
	return sum
}
