package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meatengine/internal/audit"
	"meatengine/internal/models"
	"meatengine/internal/reference"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reloader rebuilds the reference snapshot after targets change.
type Reloader interface {
	Reload(ctx context.Context) error
}

type TargetRequest struct {
	Protein              string           `json:"protein"`
	WeightTargetPerGuest float64          `json:"weight_target_per_guest"`
	CostTargetPerGuest   *decimal.Decimal `json:"cost_target_per_guest"`
}

type ProxyRequest struct {
	ProxyStoreID uint   `json:"proxy_store_id"`
	Note         string `json:"note"`
}

// TargetHandlers edits per-store targets and proxies. Every change is
// followed by a snapshot reload so reports pick it up immediately.
type TargetHandlers struct {
	db     *gorm.DB
	refs   *reference.Holder
	reload Reloader
}

func NewTargetHandlers(db *gorm.DB, refs *reference.Holder, reload Reloader) *TargetHandlers {
	return &TargetHandlers{db: db, refs: refs, reload: reload}
}

func (h *TargetHandlers) store(c *fiber.Ctx) (models.Store, error) {
	var store models.Store
	if err := h.db.First(&store, c.Params("id")).Error; err != nil {
		return store, fiber.NewError(fiber.StatusNotFound, "store not found")
	}
	return store, nil
}

// saved answers a committed change. A failed reload does not undo the row;
// the caller gets 202 and the reason instead.
func (h *TargetHandlers) saved(c *fiber.Ctx, v any) error {
	if err := h.reload.Reload(c.UserContext()); err != nil {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"saved":   v,
			"warning": "reference tables could not be reloaded: " + err.Error(),
		})
	}
	if v == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(v)
}

// GET /api/admin/stores/:id/targets
func (h *TargetHandlers) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := h.store(c)
		if err != nil {
			return err
		}
		var targets []models.StoreMeatTarget
		if err := h.db.Where("store_id = ?", store.ID).Order("protein").Find(&targets).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list targets")
		}
		return c.JSON(targets)
	}
}

// PUT /api/admin/stores/:id/targets
func (h *TargetHandlers) Upsert() fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := h.store(c)
		if err != nil {
			return err
		}
		var body TargetRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		protein := strings.TrimSpace(body.Protein)
		if protein == "" {
			return fiber.NewError(fiber.StatusBadRequest, "protein is required")
		}
		if p, ok := h.refs.Load().Protein(protein); ok {
			protein = p
		}
		if body.WeightTargetPerGuest < 0 || (body.CostTargetPerGuest != nil && body.CostTargetPerGuest.IsNegative()) {
			return fiber.NewError(fiber.StatusBadRequest, "targets must not be negative")
		}

		target := models.StoreMeatTarget{
			StoreID:              store.ID,
			Protein:              protein,
			WeightTargetPerGuest: body.WeightTargetPerGuest,
			CostTargetPerGuest:   body.CostTargetPerGuest,
		}
		actor := audit.ActorFrom(c)
		err = h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "store_id"}, {Name: "protein"}},
				DoUpdates: clause.AssignmentColumns([]string{"weight_target_per_guest", "cost_target_per_guest", "updated_at"}),
			}).Create(&target).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				StoreID:     &store.ID,
				UserID:      actor.UserID,
				UserName:    actor.UserName,
				EntityType:  "meat_target",
				EntityRef:   protein,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("%s target set to %v lbs/guest", protein, body.WeightTargetPerGuest),
				After:       target,
			})
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not save target")
		}

		return h.saved(c, target)
	}
}

// DELETE /api/admin/stores/:id/targets/:protein
func (h *TargetHandlers) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := h.store(c)
		if err != nil {
			return err
		}
		protein := c.Params("protein")

		actor := audit.ActorFrom(c)
		err = h.db.Transaction(func(tx *gorm.DB) error {
			var target models.StoreMeatTarget
			if err := tx.Where("store_id = ? AND protein = ?", store.ID, protein).First(&target).Error; err != nil {
				return err
			}
			if err := tx.Delete(&target).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				StoreID:     &store.ID,
				UserID:      actor.UserID,
				UserName:    actor.UserName,
				EntityType:  "meat_target",
				EntityRef:   protein,
				Action:      models.AuditActionDelete,
				Description: protein + " target removed",
				Before:      target,
			})
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "target not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete target")
		}

		return h.saved(c, nil)
	}
}

// PUT /api/admin/stores/:id/proxy
func (h *TargetHandlers) SetProxy() fiber.Handler {
	return func(c *fiber.Ctx) error {
		store, err := h.store(c)
		if err != nil {
			return err
		}
		var body ProxyRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.ProxyStoreID == 0 || body.ProxyStoreID == store.ID {
			return fiber.NewError(fiber.StatusBadRequest, "proxy_store_id must name another store")
		}

		var proxy models.Store
		if err := h.db.First(&proxy, body.ProxyStoreID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "proxy store not found")
		}
		if proxy.CompanyID != store.CompanyID {
			return fiber.NewError(fiber.StatusBadRequest, "proxy store must belong to the same company")
		}

		row := models.StoreProxy{StoreID: store.ID, ProxyStoreID: proxy.ID, Note: strings.TrimSpace(body.Note)}
		actor := audit.ActorFrom(c)
		err = h.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "store_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"proxy_store_id", "note", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
			return audit.WriteLog(tx, audit.LogOptions{
				StoreID:     &store.ID,
				UserID:      actor.UserID,
				UserName:    actor.UserName,
				EntityType:  "store_proxy",
				EntityRef:   fmt.Sprintf("%d", proxy.ID),
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("%s borrows targets from %s", store.Name, proxy.Name),
				After:       row,
			})
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not save proxy")
		}

		return h.saved(c, row)
	}
}
