package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"meatengine/internal/audit"
	"meatengine/internal/meat"
	"meatengine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("usage record not found")
	ErrAlreadySuperseded = errors.New("usage record already corrected")
	ErrInvalidRecord     = errors.New("invalid usage record")
)

// Entry is the caller-supplied part of a usage record.
type Entry struct {
	StoreID  uint               `json:"store_id"`
	Item     string             `json:"item"`
	Date     time.Time          `json:"date"`
	Quantity float64            `json:"quantity"`
	Source   models.UsageSource `json:"source"`
	Note     string             `json:"note"`
}

func (e Entry) validate() error {
	switch {
	case e.StoreID == 0:
		return fmt.Errorf("%w: store_id is required", ErrInvalidRecord)
	case strings.TrimSpace(e.Item) == "":
		return fmt.Errorf("%w: item is required", ErrInvalidRecord)
	case e.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidRecord)
	case math.IsNaN(e.Quantity) || math.IsInf(e.Quantity, 0) || e.Quantity < 0:
		return fmt.Errorf("%w: quantity must be a non-negative number", ErrInvalidRecord)
	case !e.Source.Valid():
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRecord, e.Source)
	}
	return nil
}

// Service is the append-only usage ledger. Rows are never edited; a
// correction is a new row that supersedes the old one.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

func (s *Service) Append(ctx context.Context, actor audit.Actor, e Entry) (models.UsageRecord, error) {
	return s.insert(ctx, actor, e, nil)
}

// Correct supersedes record id with e. Each record can be corrected once;
// correct the correction to amend it again.
func (s *Service) Correct(ctx context.Context, actor audit.Actor, id uuid.UUID, e Entry) (models.UsageRecord, error) {
	return s.insert(ctx, actor, e, &id)
}

func (s *Service) insert(ctx context.Context, actor audit.Actor, e Entry, supersedes *uuid.UUID) (models.UsageRecord, error) {
	e.Item = strings.TrimSpace(e.Item)
	if err := e.validate(); err != nil {
		return models.UsageRecord{}, err
	}

	rec := models.UsageRecord{
		ID:           uuid.New(),
		StoreID:      e.StoreID,
		Item:         e.Item,
		Date:         e.Date,
		Quantity:     e.Quantity,
		Source:       e.Source,
		SupersedesID: supersedes,
		Note:         e.Note,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before *models.UsageRecord
		action := models.AuditActionCreate
		if supersedes != nil {
			var orig models.UsageRecord
			if err := tx.First(&orig, "id = ?", *supersedes).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			if orig.StoreID != e.StoreID {
				return fmt.Errorf("%w: a correction must stay on store %d", ErrInvalidRecord, orig.StoreID)
			}
			var n int64
			if err := tx.Model(&models.UsageRecord{}).Where("supersedes_id = ?", orig.ID).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrAlreadySuperseded
			}
			before, action = &orig, models.AuditActionUpdate
		}

		if err := tx.Create(&rec).Error; err != nil {
			if supersedes != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadySuperseded
			}
			return err
		}

		return audit.WriteLog(tx, audit.LogOptions{
			StoreID:     &rec.StoreID,
			UserID:      actor.UserID,
			UserName:    actor.UserName,
			EntityType:  "usage_record",
			EntityRef:   rec.ID.String(),
			Action:      action,
			Description: fmt.Sprintf("%s %v of %s", rec.Source, rec.Quantity, rec.Item),
			Before:      before,
			After:       rec,
		})
	})
	if err != nil {
		return models.UsageRecord{}, err
	}

	s.logger.InfoContext(ctx, "usage recorded",
		"id", rec.ID,
		"store_id", rec.StoreID,
		"item", rec.Item,
		"source", rec.Source,
		"supersedes", supersedes)
	return rec, nil
}

// Effective returns the records dated in [from, to) for the given stores,
// leaving out every record a later correction replaced. Nil storeIDs means
// all stores.
func (s *Service) Effective(ctx context.Context, storeIDs []uint, from, to time.Time) ([]models.UsageRecord, error) {
	q := s.db.WithContext(ctx).
		Where("date >= ? AND date < ?", from, to).
		Where("id NOT IN (?)", s.db.Model(&models.UsageRecord{}).
			Select("supersedes_id").
			Where("supersedes_id IS NOT NULL"))
	if storeIDs != nil {
		q = q.Where("store_id IN ?", storeIDs)
	}

	var out []models.UsageRecord
	if err := q.Order("store_id, date, created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load usage records: %w", err)
	}
	return out, nil
}

// Inputs converts ledger rows into comparator input.
func Inputs(recs []models.UsageRecord) []meat.UsageInput {
	out := make([]meat.UsageInput, 0, len(recs))
	for _, r := range recs {
		out = append(out, meat.UsageInput{
			StoreID:  r.StoreID,
			Item:     r.Item,
			Quantity: r.Quantity,
			Source:   r.Source,
		})
	}
	return out
}
