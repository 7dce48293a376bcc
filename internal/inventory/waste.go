package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meatengine/internal/audit"
	"meatengine/internal/models"

	"gorm.io/gorm"
)

var (
	ErrInvalidWaste  = errors.New("invalid waste entry")
	ErrWasteNotFound = errors.New("waste entry not found")
)

type WasteInput struct {
	StoreID uint
	Date    time.Time
	Protein string
	Weight  float64
	Reason  models.WasteReason
	Note    string
}

// RecordWaste logs meat thrown away. A note naming who and why is required.
func (s *Service) RecordWaste(ctx context.Context, actor audit.Actor, in WasteInput) (models.WasteEntry, error) {
	if in.StoreID == 0 {
		return models.WasteEntry{}, fmt.Errorf("%w: store_id is required", ErrInvalidWaste)
	}
	if in.Weight <= 0 {
		return models.WasteEntry{}, fmt.Errorf("%w: weight must be greater than 0", ErrInvalidWaste)
	}
	if !in.Reason.Valid() {
		return models.WasteEntry{}, fmt.Errorf("%w: unknown reason %q", ErrInvalidWaste, in.Reason)
	}
	note := strings.TrimSpace(in.Note)
	if len(note) < 3 {
		return models.WasteEntry{}, fmt.Errorf("%w: note must say who and what happened", ErrInvalidWaste)
	}
	p, err := canonical(s.refs.Load(), in.Protein, in.Weight)
	if err != nil {
		return models.WasteEntry{}, err
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}

	entry := models.WasteEntry{
		StoreID: in.StoreID,
		Date:    calendarDay(in.Date),
		Protein: p,
		Weight:  in.Weight,
		Reason:  in.Reason,
		Note:    note,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			StoreID:     &entry.StoreID,
			UserID:      actor.UserID,
			UserName:    actor.UserName,
			EntityType:  "waste_entry",
			EntityRef:   fmt.Sprintf("%d", entry.ID),
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("waste: %s %.2f lbs (%s)", entry.Protein, entry.Weight, entry.Reason),
			After:       entry,
		})
	})
	if err != nil {
		return models.WasteEntry{}, fmt.Errorf("save waste entry: %w", err)
	}
	return entry, nil
}

// DeleteWaste removes an entry logged by mistake, keeping the audit trail.
func (s *Service) DeleteWaste(ctx context.Context, actor audit.Actor, id uint) (models.WasteEntry, error) {
	var entry models.WasteEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWasteNotFound
			}
			return err
		}
		if err := tx.Delete(&entry).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			StoreID:     &entry.StoreID,
			UserID:      actor.UserID,
			UserName:    actor.UserName,
			EntityType:  "waste_entry",
			EntityRef:   fmt.Sprintf("%d", entry.ID),
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("waste entry removed: %s %.2f lbs", entry.Protein, entry.Weight),
			Before:      entry,
		})
	})
	return entry, err
}

// WasteEntries lists a store's entries in [from, to), newest first.
func (s *Service) WasteEntries(ctx context.Context, storeID uint, from, to time.Time) ([]models.WasteEntry, error) {
	var out []models.WasteEntry
	err := s.db.WithContext(ctx).
		Where("store_id = ? AND date >= ? AND date < ?", storeID, from, to).
		Order("date DESC, id DESC").
		Find(&out).Error
	return out, err
}

// WasteByProtein sums recorded waste per protein in [from, to).
func (s *Service) WasteByProtein(ctx context.Context, storeID uint, from, to time.Time) (map[string]float64, error) {
	entries, err := s.WasteEntries(ctx, storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load waste: %w", err)
	}
	out := make(map[string]float64)
	for _, e := range entries {
		out[e.Protein] += e.Weight
	}
	return out, nil
}
