package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meatengine/internal/alert"
	"meatengine/internal/inventory"
	"meatengine/internal/meat"
	"meatengine/internal/metrics"
	"meatengine/internal/models"
	"meatengine/internal/reference"
	"meatengine/internal/usage"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrStoreNotFound = errors.New("store not found")

// gapAlertEvery limits repeat alerts for the same gap; dashboards poll.
const gapAlertEvery = time.Hour

type Config struct {
	Tolerance float64
	Notifier  alert.Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Service runs the reconciliation engine over stored usage, guest counts
// and the current reference snapshot. Every call takes a fresh snapshot so
// a reload never changes tables halfway through a report.
type Service struct {
	db        *gorm.DB
	usage     *usage.Service
	inventory *inventory.Service
	refs      *reference.Holder
	cfg       Config

	mu        sync.Mutex
	lastGapAt map[string]time.Time
}

func NewService(db *gorm.DB, u *usage.Service, inv *inventory.Service, refs *reference.Holder, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{db: db, usage: u, inventory: inv, refs: refs, cfg: cfg, lastGapAt: make(map[string]time.Time)}
}

// CompareToTarget is the variance of one protein at one store.
func (s *Service) CompareToTarget(ctx context.Context, storeID uint, protein string, period meat.Period) (meat.VarianceResult, error) {
	comp := meat.NewComparator(s.refs.Load(), s.cfg.Tolerance)
	tally, guests, err := s.load(ctx, comp, []uint{storeID}, period)
	if err != nil {
		return meat.VarianceResult{}, err
	}
	if p, ok := comp.Snapshot().Protein(protein); ok {
		protein = p
	}

	res, err := comp.Compare(storeID, protein, period, guests[storeID], tally)
	var gap *meat.ConfigGapError
	if errors.As(err, &gap) {
		s.reportGaps(ctx, period, []*meat.ConfigGapError{gap})
	}
	return res, err
}

// StoreVariance compares every protein a store used or has a target for.
func (s *Service) StoreVariance(ctx context.Context, storeID uint, period meat.Period) (meat.StoreResult, error) {
	var store models.Store
	if err := s.db.WithContext(ctx).First(&store, storeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return meat.StoreResult{}, fmt.Errorf("%w: %d", ErrStoreNotFound, storeID)
		}
		return meat.StoreResult{}, err
	}

	comp := meat.NewComparator(s.refs.Load(), s.cfg.Tolerance)
	tally, guests, err := s.load(ctx, comp, []uint{storeID}, period)
	if err != nil {
		return meat.StoreResult{}, err
	}
	res, err := comp.CompareStore(storeID, period, guests[storeID], tally)
	if err != nil {
		return meat.StoreResult{}, err
	}
	s.reportGaps(ctx, period, res.Gaps)
	s.reportExclusions(ctx, res.Exclusions)
	return res, nil
}

// Network reconciles every store of a company and rolls the results up.
func (s *Service) Network(ctx context.Context, companyID uint, period meat.Period) (meat.NetworkSummary, error) {
	started := time.Now()
	defer func() { s.cfg.Metrics.ObserveReconcile(time.Since(started).Seconds()) }()

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Store{}).
		Where("company_id = ?", companyID).Order("id").Pluck("id", &ids).Error; err != nil {
		return meat.NetworkSummary{}, fmt.Errorf("list stores: %w", err)
	}
	if len(ids) == 0 {
		return meat.Aggregate(companyID, period, nil), nil
	}

	comp := meat.NewComparator(s.refs.Load(), s.cfg.Tolerance)
	tally, guests, err := s.load(ctx, comp, ids, period)
	if err != nil {
		return meat.NetworkSummary{}, err
	}

	results := make([]meat.StoreResult, 0, len(ids))
	for _, id := range ids {
		res, err := comp.CompareStore(id, period, guests[id], tally)
		if err != nil {
			return meat.NetworkSummary{}, fmt.Errorf("store %d: %w", id, err)
		}
		s.reportGaps(ctx, period, res.Gaps)
		s.reportExclusions(ctx, res.Exclusions)
		results = append(results, res)
	}

	sum := meat.Aggregate(companyID, period, results)
	s.cfg.Logger.InfoContext(ctx, "network reconciled",
		"company_id", companyID,
		"period", period.String(),
		"stores", sum.StoreCount,
		"impact", sum.TotalFinancialImpact.StringFixed(2),
		"config_gaps", sum.ConfigGaps,
		"excluded_lines", sum.ExcludedLines)
	return sum, nil
}

type ShrinkageReport struct {
	StoreID    uint                   `json:"store_id"`
	Period     string                 `json:"period"`
	TotalCost  decimal.Decimal        `json:"total_cost"`
	Lines      []meat.ShrinkageLine   `json:"lines"`
	Gaps       []*meat.ConfigGapError `json:"gaps"`
	Exclusions []meat.Exclusion       `json:"exclusions"`
	Counts     inventory.Consumption  `json:"counts"`

	// RecordedWaste is what the store logged as thrown away; Unexplained is
	// the shrinkage left over once that is taken out.
	RecordedWaste map[string]float64 `json:"recorded_waste"`
	Unexplained   map[string]float64 `json:"unexplained"`
}

// Shrinkage sets what sales say a store used against what its counts say.
func (s *Service) Shrinkage(ctx context.Context, storeID uint, period meat.Period) (ShrinkageReport, error) {
	cons, err := s.inventory.Consumption(ctx, storeID, period)
	if err != nil {
		return ShrinkageReport{}, err
	}

	comp := meat.NewComparator(s.refs.Load(), s.cfg.Tolerance)
	tally, _, err := s.load(ctx, comp, []uint{storeID}, period)
	if err != nil {
		return ShrinkageReport{}, err
	}
	theoretical := make(map[string]float64)
	for _, p := range tally.Proteins(storeID) {
		theoretical[p] = tally.Weight(storeID, p)
	}

	lines, gaps := meat.Shrinkage(comp.Snapshot(), storeID, theoretical, cons.ByProtein())
	s.reportGaps(ctx, period, gaps)

	from, to := period.Bounds(time.UTC)
	waste, err := s.inventory.WasteByProtein(ctx, storeID, from, to)
	if err != nil {
		return ShrinkageReport{}, err
	}

	out := ShrinkageReport{
		StoreID:       storeID,
		Period:        period.String(),
		TotalCost:     decimal.Zero,
		Lines:         lines,
		Gaps:          gaps,
		Exclusions:    tally.Exclusions(storeID),
		Counts:        cons,
		RecordedWaste: waste,
		Unexplained:   make(map[string]float64, len(lines)),
	}
	for _, l := range lines {
		out.TotalCost = out.TotalCost.Add(l.ShrinkageCost)
		out.Unexplained[l.Protein] = l.Shrinkage - waste[l.Protein]
	}
	return out, nil
}

// load gathers the period's effective usage and guest counts for stores.
func (s *Service) load(ctx context.Context, comp *meat.Comparator, storeIDs []uint, period meat.Period) (*meat.Tally, map[uint]int, error) {
	from, to := period.Bounds(time.UTC)
	recs, err := s.usage.Effective(ctx, storeIDs, from, to)
	if err != nil {
		return nil, nil, err
	}

	var counts []models.GuestCount
	if err := s.db.WithContext(ctx).
		Where("store_id IN ? AND period_key = ?", storeIDs, period.String()).
		Find(&counts).Error; err != nil {
		return nil, nil, fmt.Errorf("load guest counts: %w", err)
	}
	guests := make(map[uint]int, len(counts))
	for _, g := range counts {
		guests[g.StoreID] = g.Total()
	}

	return comp.Tally(usage.Inputs(recs)), guests, nil
}

func (s *Service) reportGaps(ctx context.Context, period meat.Period, gaps []*meat.ConfigGapError) {
	now := time.Now()
	for _, g := range gaps {
		s.cfg.Metrics.ConfigGap(string(g.Kind))

		key := fmt.Sprintf("%s/%d/%s", g.Kind, g.StoreID, g.Protein)
		s.mu.Lock()
		due := now.Sub(s.lastGapAt[key]) >= gapAlertEvery
		if due {
			s.lastGapAt[key] = now
		}
		s.mu.Unlock()
		if !due || s.cfg.Notifier == nil {
			continue
		}

		if err := s.cfg.Notifier.Notify(ctx, alert.Alert{
			Kind:    alert.KindConfigGap,
			StoreID: g.StoreID,
			Protein: g.Protein,
			Period:  period.String(),
			Message: g.Error(),
			At:      now,
		}); err != nil {
			s.cfg.Metrics.AlertFailed()
			s.cfg.Logger.WarnContext(ctx, "could not deliver config gap alert", "error", err)
		}
	}
}

func (s *Service) reportExclusions(ctx context.Context, ex []meat.Exclusion) {
	unrecognized := 0
	for _, e := range ex {
		if errors.Is(e.Err(), meat.ErrUnrecognizedItem) {
			unrecognized++
		}
		s.cfg.Logger.DebugContext(ctx, "usage line excluded", "store_id", e.StoreID, "item", e.Item, "reason", e.Reason)
	}
	s.cfg.Metrics.UnrecognizedItems(unrecognized)
}
