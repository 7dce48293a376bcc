package models

import "time"

type UserRole string

const (
	RoleSuperAdmin   UserRole = "super_admin"
	RoleDirector     UserRole = "director"
	RoleStoreManager UserRole = "store_manager"
)

// Elevated roles are never locked out by the weekly count rule.
func (r UserRole) Elevated() bool {
	return r == RoleSuperAdmin || r == RoleDirector
}

type User struct {
	ID           uint `gorm:"primaryKey"`
	StoreID      *uint
	Store        *Store
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
