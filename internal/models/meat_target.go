package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreMeatTarget: expected raw lbs per guest for one protein at one store
type StoreMeatTarget struct {
	ID                   uint             `gorm:"primaryKey" json:"id"`
	StoreID              uint             `gorm:"uniqueIndex:idx_store_protein;not null" json:"store_id"`
	Protein              string           `gorm:"uniqueIndex:idx_store_protein;size:100;not null" json:"protein"`
	WeightTargetPerGuest float64          `gorm:"not null" json:"weight_target_per_guest"`
	CostTargetPerGuest   *decimal.Decimal `gorm:"type:numeric(12,4)" json:"cost_target_per_guest"` // optional
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}
