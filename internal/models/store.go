package models

import "time"

type Company struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null;unique" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Stores []Store `json:"stores,omitempty"`
}

// Store: a single restaurant in a company's network
type Store struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"index;not null" json:"company_id"`
	Name      string    `gorm:"size:100;not null;unique" json:"name"`
	Location  string    `gorm:"size:255" json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Users []User `json:"-"`
}

// StoreProxy: an unmeasured store borrows the meat targets of a measured one
// (usually the geographically closest store with a similar guest mix).
type StoreProxy struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StoreID      uint      `gorm:"uniqueIndex;not null" json:"store_id"`
	ProxyStoreID uint      `gorm:"not null" json:"proxy_store_id"`
	Note         string    `gorm:"size:255" json:"note"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
