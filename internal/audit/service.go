package audit

import (
	"encoding/json"
	"fmt"

	"meatengine/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	StoreID     *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityRef   string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog records a mutating action. Pass the transaction the change runs
// in so the log entry commits or rolls back with it.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	// jsonb wants "null", not an empty string
	beforeStr, afterStr := "null", "null"

	if opts.Before != nil {
		b, err := json.Marshal(opts.Before)
		if err != nil {
			return fmt.Errorf("marshal audit before state: %w", err)
		}
		beforeStr = string(b)
	}
	if opts.After != nil {
		b, err := json.Marshal(opts.After)
		if err != nil {
			return fmt.Errorf("marshal audit after state: %w", err)
		}
		afterStr = string(b)
	}

	entry := models.AuditLog{
		StoreID:     opts.StoreID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityRef:   opts.EntityRef,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("save audit log: %w", err)
	}
	return nil
}

// Actor is who performed an audited action.
type Actor struct {
	UserID   uint
	UserName string
}
