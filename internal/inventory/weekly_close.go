package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"meatengine/internal/audit"
	"meatengine/internal/compliance"
	"meatengine/internal/meat"
	"meatengine/internal/models"
	"meatengine/internal/reference"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidClose   = errors.New("invalid weekly close")
	ErrUnknownProtein = errors.New("unknown protein")
	ErrNoCount        = errors.New("no inventory count")
)

var errAlreadySubmitted = errors.New("already submitted")

type CountLine struct {
	Protein  string  `json:"protein"`
	Quantity float64 `json:"quantity"` // lbs on hand
}

type PurchaseLine struct {
	Protein   string          `json:"protein"`
	Quantity  float64         `json:"quantity"`
	CostTotal decimal.Decimal `json:"cost_total"`
	Date      time.Time       `json:"date"` // zero means the day before the count
}

// WeeklyClose is one store's end-of-week submission: the physical count,
// the week's invoices and its guest count.
type WeeklyClose struct {
	StoreID        uint
	WindowKey      string    // empty means the window open at submission time
	CountDate      time.Time // zero means the submission day
	Counts         []CountLine
	Purchases      []PurchaseLine
	DineInGuests   int
	DeliveryGuests int
}

type CloseResult struct {
	WindowKey    string                      `json:"window_key"`
	ClosedPeriod string                      `json:"closed_period"`
	Result       compliance.SubmissionResult `json:"result"`
	Counts       int                         `json:"counts"`
	Purchases    int                         `json:"purchases"`
}

type Service struct {
	db     *gorm.DB
	gate   *compliance.Gate
	refs   *reference.Holder
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, gate *compliance.Gate, refs *reference.Holder, logger *slog.Logger) *Service {
	return &Service{db: db, gate: gate, refs: refs, logger: logger, now: time.Now}
}

// WeeklyClose saves the count, purchases and guests and records the
// compliance submission in one transaction. A repeat close for a window
// that is already submitted changes nothing and reports AlreadySubmitted.
func (s *Service) WeeklyClose(ctx context.Context, actor audit.Actor, in WeeklyClose) (CloseResult, error) {
	now := s.now()
	sched := s.gate.Schedule()

	var w compliance.Window
	if in.WindowKey == "" {
		w = sched.WindowAt(now)
	} else {
		var err error
		if w, err = sched.ParseWindowKey(in.WindowKey); err != nil {
			return CloseResult{}, err
		}
	}
	// the count closes the week before the cutoff's week
	closed := meat.PeriodOf(w.Cutoff.AddDate(0, 0, -7))

	if in.CountDate.IsZero() {
		in.CountDate = calendarDay(now.In(sched.Location))
	}
	counts, purchases, err := s.normalize(in)
	if err != nil {
		return CloseResult{}, err
	}

	res := CloseResult{
		WindowKey:    w.Key,
		ClosedPeriod: closed.String(),
		Counts:       len(counts),
		Purchases:    len(purchases),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("store_id = ? AND date = ?", in.StoreID, in.CountDate).Delete(&models.InventoryRecord{}).Error; err != nil {
			return err
		}
		if len(counts) > 0 {
			if err := tx.Create(&counts).Error; err != nil {
				return fmt.Errorf("save counts: %w", err)
			}
		}
		if len(purchases) > 0 {
			if err := tx.Create(&purchases).Error; err != nil {
				return fmt.Errorf("save purchases: %w", err)
			}
		}

		guests := models.GuestCount{
			StoreID:   in.StoreID,
			PeriodKey: closed.String(),
			DineIn:    in.DineInGuests,
			Delivery:  in.DeliveryGuests,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "period_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"dine_in", "delivery", "updated_at"}),
		}).Create(&guests).Error; err != nil {
			return fmt.Errorf("save guest count: %w", err)
		}

		sub, err := s.gate.WithRepository(compliance.NewGormCycleRepository(tx)).
			RecordSubmission(ctx, in.StoreID, w.Key, now)
		if err != nil {
			return err
		}
		if sub == compliance.AlreadySubmitted {
			return errAlreadySubmitted
		}
		res.Result = sub

		return audit.WriteLog(tx, audit.LogOptions{
			StoreID:     &in.StoreID,
			UserID:      actor.UserID,
			UserName:    actor.UserName,
			EntityType:  "weekly_close",
			EntityRef:   w.Key,
			Action:      models.AuditActionSubmit,
			Description: fmt.Sprintf("weekly close %s: %d counts, %d purchases, %d guests", closed, len(counts), len(purchases), guests.Total()),
			After:       res,
		})
	})
	if errors.Is(err, errAlreadySubmitted) {
		return CloseResult{WindowKey: w.Key, ClosedPeriod: closed.String(), Result: compliance.AlreadySubmitted}, nil
	}
	if err != nil {
		return CloseResult{}, err
	}

	s.logger.InfoContext(ctx, "weekly close recorded",
		"store_id", in.StoreID,
		"window", w.Key,
		"period", closed.String(),
		"counts", len(counts),
		"purchases", len(purchases))
	return res, nil
}

func (s *Service) normalize(in WeeklyClose) ([]models.InventoryRecord, []models.PurchaseRecord, error) {
	if in.StoreID == 0 {
		return nil, nil, fmt.Errorf("%w: store_id is required", ErrInvalidClose)
	}
	if in.DineInGuests < 0 || in.DeliveryGuests < 0 {
		return nil, nil, fmt.Errorf("%w: guest counts must not be negative", ErrInvalidClose)
	}
	snap := s.refs.Load()

	counts := make([]models.InventoryRecord, 0, len(in.Counts))
	seen := make(map[string]bool, len(in.Counts))
	for _, l := range in.Counts {
		p, err := canonical(snap, l.Protein, l.Quantity)
		if err != nil {
			return nil, nil, err
		}
		if seen[p] {
			return nil, nil, fmt.Errorf("%w: %s counted twice", ErrInvalidClose, p)
		}
		seen[p] = true
		counts = append(counts, models.InventoryRecord{StoreID: in.StoreID, Date: in.CountDate, Protein: p, Quantity: l.Quantity})
	}

	purchases := make([]models.PurchaseRecord, 0, len(in.Purchases))
	for _, l := range in.Purchases {
		p, err := canonical(snap, l.Protein, l.Quantity)
		if err != nil {
			return nil, nil, err
		}
		if l.CostTotal.IsNegative() {
			return nil, nil, fmt.Errorf("%w: cost_total for %s is negative", ErrInvalidClose, p)
		}
		d := l.Date
		if d.IsZero() {
			d = in.CountDate.AddDate(0, 0, -1)
		}
		purchases = append(purchases, models.PurchaseRecord{StoreID: in.StoreID, Date: d, Protein: p, Quantity: l.Quantity, CostTotal: l.CostTotal})
	}
	return counts, purchases, nil
}

func canonical(snap *reference.Snapshot, protein string, qty float64) (string, error) {
	p, ok := snap.Protein(protein)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProtein, strings.TrimSpace(protein))
	}
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return "", fmt.Errorf("%w: quantity for %s must be a non-negative number", ErrInvalidClose, p)
	}
	return p, nil
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
