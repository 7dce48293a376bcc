package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryRecord: physical count of one protein on the count date
type InventoryRecord struct {
	ID        uint      `gorm:"primaryKey"`
	StoreID   uint      `gorm:"index:idx_inv_store_date,priority:1;not null"`
	Date      time.Time `gorm:"index:idx_inv_store_date,priority:2;not null"`
	Protein   string    `gorm:"size:100;not null"`
	Quantity  float64   `gorm:"not null"` // lbs on hand
	CreatedAt time.Time
}

// PurchaseRecord: an invoice line received during the week
type PurchaseRecord struct {
	ID        uint            `gorm:"primaryKey"`
	StoreID   uint            `gorm:"index:idx_purchase_store_date,priority:1;not null"`
	Date      time.Time       `gorm:"index:idx_purchase_store_date,priority:2;not null"` // invoice date
	Protein   string          `gorm:"size:100;not null"`
	Quantity  float64         `gorm:"not null"`
	CostTotal decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time
}

// GuestCount: guests served by a store in one period (dine-in + delivery)
type GuestCount struct {
	ID        uint   `gorm:"primaryKey"`
	StoreID   uint   `gorm:"uniqueIndex:idx_guest_store_period;not null"`
	PeriodKey string `gorm:"uniqueIndex:idx_guest_store_period;size:10;not null"`
	DineIn    int    `gorm:"not null;default:0"`
	Delivery  int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g GuestCount) Total() int {
	return g.DineIn + g.Delivery
}
