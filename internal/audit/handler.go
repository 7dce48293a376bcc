package audit

import (
	"meatengine/internal/auth"
	"meatengine/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const maxListed = 500

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	StoreID     *uint              `json:"store_id"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityRef   string             `json:"entity_ref"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
}

// GET /api/audit-logs?entity_type=weekly_close&store_id=1&user_id=2
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := auth.RoleFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role missing from request")
		}

		dbq := db.Model(&models.AuditLog{})

		// managers only ever see their own store
		if !role.Elevated() {
			storeID, ok := auth.StoreIDFrom(c)
			if !ok {
				return fiber.NewError(fiber.StatusForbidden, "no store bound to this account")
			}
			dbq = dbq.Where("store_id = ?", storeID)
		} else if sid := c.QueryInt("store_id"); sid > 0 {
			dbq = dbq.Where("store_id = ?", sid)
		}

		if uid := c.QueryInt("user_id"); uid > 0 {
			dbq = dbq.Where("user_id = ?", uid)
		}
		if et := c.Query("entity_type"); et != "" {
			dbq = dbq.Where("entity_type = ?", et)
		}
		if ref := c.Query("entity_ref"); ref != "" {
			dbq = dbq.Where("entity_ref = ?", ref)
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC").Order("id DESC").Limit(maxListed).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				StoreID:     l.StoreID,
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityRef:   l.EntityRef,
				Action:      l.Action,
				Description: l.Description,
			})
		}

		return c.JSON(resp)
	}
}
