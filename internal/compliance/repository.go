package compliance

import (
	"context"
	"time"

	"meatengine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCycleRepository keeps inventory cycles in the main database. The
// unique (store_id, cycle_type, window_key) index makes both writes safe to
// repeat and to race.
type GormCycleRepository struct {
	db *gorm.DB
}

func NewGormCycleRepository(db *gorm.DB) *GormCycleRepository {
	return &GormCycleRepository{db: db}
}

func (r *GormCycleRepository) EnsurePending(ctx context.Context, storeID uint, w Window) error {
	cycle := models.InventoryCycle{
		StoreID:     storeID,
		CycleType:   models.CycleWeekly,
		WindowKey:   w.Key,
		Status:      models.CyclePending,
		WindowStart: w.Start,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cycle).Error
}

func (r *GormCycleRepository) MarkSubmitted(ctx context.Context, storeID uint, windowKey string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryCycle{}).
		Where("store_id = ? AND cycle_type = ? AND window_key = ? AND status = ?",
			storeID, models.CycleWeekly, windowKey, models.CyclePending).
		Updates(map[string]any{
			"status":       models.CycleSubmitted,
			"submitted_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormCycleRepository) HasSubmission(ctx context.Context, storeID uint, windowKey string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryCycle{}).
		Where("store_id = ? AND cycle_type = ? AND window_key = ? AND status = ?",
			storeID, models.CycleWeekly, windowKey, models.CycleSubmitted).
		Count(&n).Error
	return n > 0, err
}

func (r *GormCycleRepository) StoreIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Store{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

// Cycles lists a store's cycles, newest first.
func (r *GormCycleRepository) Cycles(ctx context.Context, storeID uint, limit int) ([]models.InventoryCycle, error) {
	var out []models.InventoryCycle
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("window_start DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
