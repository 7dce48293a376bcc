package models

import (
	"time"

	"github.com/google/uuid"
)

type UsageSource string

const (
	UsageSourceManual   UsageSource = "manual"
	UsageSourcePOS      UsageSource = "pos"
	UsageSourceDelivery UsageSource = "delivery"
)

func (s UsageSource) Valid() bool {
	switch s {
	case UsageSourceManual, UsageSourcePOS, UsageSourceDelivery:
		return true
	}
	return false
}

// UsageRecord: one consumption observation. Rows are never updated; a
// correction is a new row pointing at the row it supersedes.
type UsageRecord struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey"`
	StoreID      uint        `gorm:"index:idx_usage_store_date,priority:1;not null"`
	Item         string      `gorm:"size:150;not null"` // protein key or menu item name
	Date         time.Time   `gorm:"index:idx_usage_store_date,priority:2;not null"`
	Quantity     float64     `gorm:"not null"` // lbs for proteins, units for combos
	Source       UsageSource `gorm:"size:20;not null"`
	SupersedesID *uuid.UUID  `gorm:"type:uuid;uniqueIndex"` // a row is superseded at most once
	Note         string      `gorm:"size:255"`
	CreatedAt    time.Time
}
