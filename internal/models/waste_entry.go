package models

import "time"

type WasteReason string

const (
	WasteReasonTrim     WasteReason = "trim"
	WasteReasonOvercook WasteReason = "overcooked"
	WasteReasonDropped  WasteReason = "dropped"
	WasteReasonSpoilage WasteReason = "spoilage"
	WasteReasonReturned WasteReason = "returned"
	WasteReasonOther    WasteReason = "other"
)

func (r WasteReason) Valid() bool {
	switch r {
	case WasteReasonTrim, WasteReasonOvercook, WasteReasonDropped, WasteReasonSpoilage, WasteReasonReturned, WasteReasonOther:
		return true
	}
	return false
}

// WasteEntry: raw lbs of one protein thrown away on a day
type WasteEntry struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	StoreID   uint        `gorm:"index:idx_waste_store_date,priority:1;not null" json:"store_id"`
	Date      time.Time   `gorm:"index:idx_waste_store_date,priority:2;not null" json:"date"`
	Protein   string      `gorm:"size:100;not null" json:"protein"`
	Weight    float64     `gorm:"not null" json:"weight"`
	Reason    WasteReason `gorm:"size:20;not null" json:"reason"`
	Note      string      `gorm:"size:500;not null" json:"note"` // who and what happened
	CreatedAt time.Time   `json:"created_at"`
}
