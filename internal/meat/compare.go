package meat

import (
	"errors"
	"fmt"
	"sort"

	"meatengine/internal/models"
	"meatengine/internal/reference"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityOptimal   Severity = "optimal"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityUndefined Severity = "undefined" // no guests, ratio has no meaning
)

// UsageInput is one usage observation already limited to the period being
// reconciled.
type UsageInput struct {
	StoreID  uint
	Item     string
	Quantity float64
	Source   models.UsageSource
}

// Exclusion is a usage line that could not be turned into protein weight.
type Exclusion struct {
	StoreID  uint    `json:"store_id"`
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	Reason   string  `json:"reason"`
	err      error
}

func (e Exclusion) Err() error { return e.err }

// Tally holds raw protein weight per store after combo and yield processing.
type Tally struct {
	weights    map[uint]map[string]float64
	exclusions []Exclusion
}

func (t *Tally) Weight(storeID uint, protein string) float64 {
	return t.weights[storeID][protein]
}

// Proteins lists the proteins with usage at a store, sorted.
func (t *Tally) Proteins(storeID uint) []string {
	out := make([]string, 0, len(t.weights[storeID]))
	for p := range t.weights[storeID] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (t *Tally) Exclusions(storeID uint) []Exclusion {
	var out []Exclusion
	for _, e := range t.exclusions {
		if e.StoreID == storeID {
			out = append(out, e)
		}
	}
	return out
}

// VarianceResult compares one protein's consumption at one store against its
// target. Positive variances are over target, i.e. unfavourable.
type VarianceResult struct {
	StoreID            uint             `json:"store_id"`
	Protein            string           `json:"protein"`
	Period             string           `json:"period"`
	GuestCount         int              `json:"guest_count"`
	ActualWeight       float64          `json:"actual_weight"`
	TargetWeight       float64          `json:"target_weight"`
	WeightVariance     float64          `json:"weight_variance"`
	ActualPerGuest     *float64         `json:"actual_per_guest"`
	TargetPerGuest     float64          `json:"target_per_guest"`
	RatioUndefined     bool             `json:"ratio_undefined"`
	ActualCost         decimal.Decimal  `json:"actual_cost"`
	TargetCost         decimal.Decimal  `json:"target_cost"`
	CostVariance       decimal.Decimal  `json:"cost_variance"`
	CostTargetPerGuest *decimal.Decimal `json:"cost_target_per_guest,omitempty"`
	Severity           Severity         `json:"severity"`
	TargetMissing      bool             `json:"target_missing,omitempty"`
}

// StoreResult rolls up every protein compared for one store. Lines that hit
// a configuration gap are left out of the totals and listed in Gaps.
type StoreResult struct {
	StoreID        uint              `json:"store_id"`
	Period         string            `json:"period"`
	GuestCount     int               `json:"guest_count"`
	ActualWeight   float64           `json:"actual_weight"`
	TargetWeight   float64           `json:"target_weight"`
	WeightVariance float64           `json:"weight_variance"`
	ActualPerGuest *float64          `json:"actual_per_guest"`
	RatioUndefined bool              `json:"ratio_undefined"`
	ActualCost     decimal.Decimal   `json:"actual_cost"`
	TargetCost     decimal.Decimal   `json:"target_cost"`
	CostVariance   decimal.Decimal   `json:"cost_variance"`
	Severity       Severity          `json:"severity"`
	Lines          []VarianceResult  `json:"lines"`
	Gaps           []*ConfigGapError `json:"gaps"`
	Exclusions     []Exclusion       `json:"exclusions"`
}

type Comparator struct {
	snap      *reference.Snapshot
	resolver  *Resolver
	tolerance float64
}

// NewComparator builds a comparator over one snapshot. tolerance is the
// fraction above target still classed as a warning (0.05 = 5%).
func NewComparator(snap *reference.Snapshot, tolerance float64) *Comparator {
	return &Comparator{snap: snap, resolver: NewResolver(snap), tolerance: tolerance}
}

func (c *Comparator) Snapshot() *reference.Snapshot { return c.snap }

// Tally resolves usage records into raw protein weight. POS and delivery
// sales are served portions and are grossed up by yield; manual entries are
// already raw weight.
func (c *Comparator) Tally(records []UsageInput) *Tally {
	t := &Tally{weights: make(map[uint]map[string]float64)}
	for _, rec := range records {
		lines, err := c.resolver.Resolve(rec.Item, rec.Quantity)
		if err != nil {
			t.exclude(rec, err)
			continue
		}

		raw := make([]Line, 0, len(lines))
		for _, l := range lines {
			w := l.Weight
			if rec.Source == models.UsageSourcePOS || rec.Source == models.UsageSourceDelivery {
				if w, err = AdjustYield(c.snap, l.Protein, l.Weight, ServedToRaw); err != nil {
					break
				}
			}
			raw = append(raw, Line{Protein: l.Protein, Weight: w})
		}
		if err != nil {
			t.exclude(rec, err)
			continue
		}

		if t.weights[rec.StoreID] == nil {
			t.weights[rec.StoreID] = make(map[string]float64)
		}
		for _, l := range raw {
			t.weights[rec.StoreID][l.Protein] += l.Weight
		}
	}
	return t
}

func (t *Tally) exclude(rec UsageInput, err error) {
	t.exclusions = append(t.exclusions, Exclusion{
		StoreID:  rec.StoreID,
		Item:     rec.Item,
		Quantity: rec.Quantity,
		Reason:   err.Error(),
		err:      err,
	})
}

// Compare computes the variance of one protein at one store for a period.
func (c *Comparator) Compare(storeID uint, protein string, period Period, guestCount int, tally *Tally) (VarianceResult, error) {
	if guestCount < 0 {
		return VarianceResult{}, fmt.Errorf("%w: %d", ErrInvalidGuestCount, guestCount)
	}

	res := VarianceResult{
		StoreID:      storeID,
		Protein:      protein,
		Period:       period.String(),
		GuestCount:   guestCount,
		ActualWeight: tally.Weight(storeID, protein),
		ActualCost:   decimal.Zero,
		TargetCost:   decimal.Zero,
		CostVariance: decimal.Zero,
	}
	res.ActualPerGuest, res.RatioUndefined = perGuest(res.ActualWeight, guestCount)

	target, ok := c.snap.Target(storeID, protein)
	if !ok {
		if res.ActualWeight != 0 {
			return VarianceResult{}, gapFor(storeID, protein, fmt.Errorf("%w: %q has usage but no target", ErrMissingTarget, protein))
		}
		res.TargetMissing = true
		res.Severity = classify(0, 0, guestCount, c.tolerance)
		return res, nil
	}

	res.TargetPerGuest = target.WeightPerGuest
	res.CostTargetPerGuest = target.CostPerGuest
	res.TargetWeight = target.WeightPerGuest * float64(guestCount)
	res.WeightVariance = res.ActualWeight - res.TargetWeight

	var err error
	if res.ActualCost, err = Price(c.snap, protein, res.ActualWeight); err != nil {
		return VarianceResult{}, gapFor(storeID, protein, err)
	}
	if res.TargetCost, err = Price(c.snap, protein, res.TargetWeight); err != nil {
		return VarianceResult{}, gapFor(storeID, protein, err)
	}
	res.CostVariance = res.ActualCost.Sub(res.TargetCost)
	res.Severity = classify(res.ActualWeight, res.TargetWeight, guestCount, c.tolerance)
	return res, nil
}

// CompareStore compares every protein the store used or has a target for.
func (c *Comparator) CompareStore(storeID uint, period Period, guestCount int, tally *Tally) (StoreResult, error) {
	if guestCount < 0 {
		return StoreResult{}, fmt.Errorf("%w: %d", ErrInvalidGuestCount, guestCount)
	}

	out := StoreResult{
		StoreID:      storeID,
		Period:       period.String(),
		GuestCount:   guestCount,
		ActualCost:   decimal.Zero,
		TargetCost:   decimal.Zero,
		CostVariance: decimal.Zero,
		Exclusions:   tally.Exclusions(storeID),
	}

	for _, protein := range union(tally.Proteins(storeID), c.snap.TargetProteins(storeID)) {
		line, err := c.Compare(storeID, protein, period, guestCount, tally)
		if err != nil {
			var gap *ConfigGapError
			if errors.As(err, &gap) {
				out.Gaps = append(out.Gaps, gap)
				continue
			}
			return StoreResult{}, err
		}
		out.Lines = append(out.Lines, line)
		out.ActualWeight += line.ActualWeight
		out.TargetWeight += line.TargetWeight
		out.ActualCost = out.ActualCost.Add(line.ActualCost)
		out.TargetCost = out.TargetCost.Add(line.TargetCost)
		out.CostVariance = out.CostVariance.Add(line.CostVariance)
	}

	out.WeightVariance = out.ActualWeight - out.TargetWeight
	out.ActualPerGuest, out.RatioUndefined = perGuest(out.ActualWeight, guestCount)
	out.Severity = classify(out.ActualWeight, out.TargetWeight, guestCount, c.tolerance)
	return out, nil
}

// classify compares actual/guests against target/guests. With guests > 0
// that is the same as comparing the weights directly.
func classify(actual, target float64, guests int, tolerance float64) Severity {
	switch {
	case guests == 0:
		return SeverityUndefined
	case actual <= target:
		return SeverityOptimal
	case actual <= target*(1+tolerance):
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

func perGuest(weight float64, guests int) (*float64, bool) {
	if guests == 0 {
		return nil, true
	}
	v := weight / float64(guests)
	return &v, false
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
