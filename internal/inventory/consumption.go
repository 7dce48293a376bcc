package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"meatengine/internal/meat"
	"meatengine/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ConsumptionLine struct {
	Protein      string          `json:"protein"`
	StartCount   float64         `json:"start_count"`
	Purchased    float64         `json:"purchased"`
	EndCount     float64         `json:"end_count"`
	Consumed     float64         `json:"consumed"` // start + purchased - end
	PurchaseCost decimal.Decimal `json:"purchase_cost"`
}

type Consumption struct {
	StoreID   uint              `json:"store_id"`
	Period    string            `json:"period"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	Lines     []ConsumptionLine `json:"lines"`
}

// ByProtein maps each protein to the raw lbs the counts say were used.
func (c Consumption) ByProtein() map[string]float64 {
	out := make(map[string]float64, len(c.Lines))
	for _, l := range c.Lines {
		out[l.Protein] = l.Consumed
	}
	return out
}

// Consumption derives what a store used in a period from its counts: the
// count at the start of the period plus what was bought, minus the count at
// the end. Counts are taken at the weekly close, so the start count is the
// latest one on or before the period's first day and the end count the
// latest on or before the day after its last.
func (s *Service) Consumption(ctx context.Context, storeID uint, period meat.Period) (Consumption, error) {
	from, to := period.Bounds(time.UTC)
	db := s.db.WithContext(ctx)

	endDate, err := latestCountDate(db, storeID, to)
	if err != nil {
		return Consumption{}, err
	}
	startDate, err := latestCountDate(db, storeID, from)
	if err != nil {
		return Consumption{}, err
	}
	if !endDate.After(startDate) {
		return Consumption{}, fmt.Errorf("%w: store %d has no count closing %s", ErrNoCount, storeID, period)
	}

	start, err := countsOn(db, storeID, startDate)
	if err != nil {
		return Consumption{}, err
	}
	end, err := countsOn(db, storeID, endDate)
	if err != nil {
		return Consumption{}, err
	}

	var purchases []models.PurchaseRecord
	if err := db.Where("store_id = ? AND date >= ? AND date < ?", storeID, startDate, endDate).
		Find(&purchases).Error; err != nil {
		return Consumption{}, fmt.Errorf("load purchases: %w", err)
	}

	lines := make(map[string]*ConsumptionLine)
	line := func(p string) *ConsumptionLine {
		if lines[p] == nil {
			lines[p] = &ConsumptionLine{Protein: p, PurchaseCost: decimal.Zero}
		}
		return lines[p]
	}
	for p, q := range start {
		line(p).StartCount = q
	}
	for p, q := range end {
		line(p).EndCount = q
	}
	for _, pr := range purchases {
		l := line(pr.Protein)
		l.Purchased += pr.Quantity
		l.PurchaseCost = l.PurchaseCost.Add(pr.CostTotal)
	}

	out := Consumption{
		StoreID:   storeID,
		Period:    period.String(),
		StartDate: startDate.Format("2006-01-02"),
		EndDate:   endDate.Format("2006-01-02"),
		Lines:     make([]ConsumptionLine, 0, len(lines)),
	}
	for _, l := range lines {
		l.Consumed = l.StartCount + l.Purchased - l.EndCount
		out.Lines = append(out.Lines, *l)
	}
	sort.Slice(out.Lines, func(i, j int) bool { return out.Lines[i].Protein < out.Lines[j].Protein })
	return out, nil
}

func latestCountDate(db *gorm.DB, storeID uint, onOrBefore time.Time) (time.Time, error) {
	var rec models.InventoryRecord
	err := db.Where("store_id = ? AND date <= ?", storeID, onOrBefore).
		Order("date DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, fmt.Errorf("%w: store %d has no count on or before %s", ErrNoCount, storeID, onOrBefore.Format("2006-01-02"))
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load counts: %w", err)
	}
	return rec.Date, nil
}

func countsOn(db *gorm.DB, storeID uint, date time.Time) (map[string]float64, error) {
	var recs []models.InventoryRecord
	if err := db.Where("store_id = ? AND date = ?", storeID, date).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load counts: %w", err)
	}
	out := make(map[string]float64, len(recs))
	for _, r := range recs {
		out[r.Protein] += r.Quantity
	}
	return out, nil
}
