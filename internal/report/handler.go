package report

import (
	"errors"
	"time"

	"meatengine/internal/auth"
	"meatengine/internal/inventory"
	"meatengine/internal/meat"
	"meatengine/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// periodFrom reads ?period=YYYY-Www, defaulting to the last full week.
func periodFrom(c *fiber.Ctx, now func() time.Time) (meat.Period, error) {
	raw := c.Query("period")
	if raw == "" {
		if now == nil {
			now = time.Now
		}
		return meat.PeriodOf(now().AddDate(0, 0, -7)), nil
	}
	p, err := meat.ParsePeriod(raw)
	if err != nil {
		return meat.Period{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return p, nil
}

func storeParam(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid store id")
	}
	if !auth.CanAccessStore(c, uint(id)) {
		return 0, fiber.NewError(fiber.StatusForbidden, "you can only read your own store")
	}
	return uint(id), nil
}

// GET /api/reports/stores/:id/variance?period=2026-W09[&protein=Picanha]
func StoreVarianceHandler(svc *Service, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeID, err := storeParam(c)
		if err != nil {
			return err
		}
		period, err := periodFrom(c, now)
		if err != nil {
			return err
		}

		if protein := c.Query("protein"); protein != "" {
			res, err := svc.CompareToTarget(c.UserContext(), storeID, protein, period)
			var gap *meat.ConfigGapError
			if errors.As(err, &gap) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": gap.Error(), "gap": gap})
			}
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "could not compute variance")
			}
			return c.JSON(res)
		}

		res, err := svc.StoreVariance(c.UserContext(), storeID, period)
		if errors.Is(err, ErrStoreNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not compute variance")
		}
		return c.JSON(res)
	}
}

// GET /api/reports/network?company_id=1&period=2026-W09
func NetworkHandler(svc *Service, db *gorm.DB, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, err := periodFrom(c, now)
		if err != nil {
			return err
		}

		companyID := uint(c.QueryInt("company_id"))
		if companyID == 0 {
			// single-company installs need not pass it
			var first models.Company
			if err := db.WithContext(c.UserContext()).Order("id").First(&first).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "no company configured")
			}
			companyID = first.ID
		}

		sum, err := svc.Network(c.UserContext(), companyID, period)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not reconcile network")
		}
		return c.JSON(sum)
	}
}

// GET /api/reports/stores/:id/shrinkage?period=2026-W09
func ShrinkageHandler(svc *Service, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeID, err := storeParam(c)
		if err != nil {
			return err
		}
		period, err := periodFrom(c, now)
		if err != nil {
			return err
		}

		res, err := svc.Shrinkage(c.UserContext(), storeID, period)
		if errors.Is(err, inventory.ErrNoCount) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not compute shrinkage")
		}
		return c.JSON(res)
	}
}
