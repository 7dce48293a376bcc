package models

import "time"

type CycleType string

const CycleWeekly CycleType = "WEEKLY"

type CycleStatus string

const (
	CyclePending   CycleStatus = "PENDING"
	CycleSubmitted CycleStatus = "SUBMITTED"
)

// InventoryCycle: one row per store per compliance window. Only ever moves
// PENDING -> SUBMITTED.
type InventoryCycle struct {
	ID          uint        `gorm:"primaryKey"`
	StoreID     uint        `gorm:"uniqueIndex:idx_cycle_window,priority:1;not null"`
	CycleType   CycleType   `gorm:"uniqueIndex:idx_cycle_window,priority:2;size:20;not null"`
	WindowKey   string      `gorm:"uniqueIndex:idx_cycle_window,priority:3;size:10;not null"`
	Status      CycleStatus `gorm:"size:20;not null;index"`
	WindowStart time.Time   `gorm:"not null"`
	SubmittedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
