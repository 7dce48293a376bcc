package inventory

import (
	"errors"
	"time"

	"meatengine/internal/audit"
	"meatengine/internal/auth"
	"meatengine/internal/compliance"
	"meatengine/internal/meat"
	"meatengine/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type WeeklyCloseRequest struct {
	StoreID        uint   `json:"store_id"`
	WindowKey      string `json:"window_key"`
	CountDate      string `json:"count_date"`
	DineInGuests   int    `json:"dine_in_guests"`
	DeliveryGuests int    `json:"delivery_guests"`
	Counts         []struct {
		Protein  string  `json:"protein"`
		Quantity float64 `json:"quantity"`
	} `json:"counts"`
	Purchases []struct {
		Protein   string          `json:"protein"`
		Quantity  float64         `json:"quantity"`
		CostTotal decimal.Decimal `json:"cost_total"`
		Date      string          `json:"date"`
	} `json:"purchases"`
}

func parseDate(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, field+" must be YYYY-MM-DD")
	}
	return d, nil
}

// POST /api/inventory/weekly-close
//
// Not behind the compliance middleware: this is how a locked store unlocks.
func WeeklyCloseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body WeeklyCloseRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if sid, ok := auth.StoreIDFrom(c); ok && body.StoreID == 0 {
			body.StoreID = sid
		}
		if !auth.CanAccessStore(c, body.StoreID) {
			return fiber.NewError(fiber.StatusForbidden, "you can only close your own store")
		}

		in := WeeklyClose{
			StoreID:        body.StoreID,
			WindowKey:      body.WindowKey,
			DineInGuests:   body.DineInGuests,
			DeliveryGuests: body.DeliveryGuests,
		}
		var err error
		if in.CountDate, err = parseDate(body.CountDate, "count_date"); err != nil {
			return err
		}
		for _, l := range body.Counts {
			in.Counts = append(in.Counts, CountLine{Protein: l.Protein, Quantity: l.Quantity})
		}
		for _, l := range body.Purchases {
			d, err := parseDate(l.Date, "purchase date")
			if err != nil {
				return err
			}
			in.Purchases = append(in.Purchases, PurchaseLine{Protein: l.Protein, Quantity: l.Quantity, CostTotal: l.CostTotal, Date: d})
		}

		res, err := svc.WeeklyClose(c.UserContext(), audit.ActorFrom(c), in)
		switch {
		case errors.Is(err, ErrInvalidClose), errors.Is(err, ErrUnknownProtein),
			errors.Is(err, compliance.ErrInvalidWindowKey), errors.Is(err, compliance.ErrOutsideWindow):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "could not save weekly close")
		}

		status := fiber.StatusCreated
		if res.Result == compliance.AlreadySubmitted {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(res)
	}
}

// GET /api/inventory/consumption?store_id=1&period=2026-W09
func ConsumptionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeID := uint(c.QueryInt("store_id"))
		if sid, ok := auth.StoreIDFrom(c); ok && storeID == 0 {
			storeID = sid
		}
		if !auth.CanAccessStore(c, storeID) {
			return fiber.NewError(fiber.StatusForbidden, "you can only read your own store")
		}
		period, err := meat.ParsePeriod(c.Query("period"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		out, err := svc.Consumption(c.UserContext(), storeID, period)
		if errors.Is(err, ErrNoCount) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not compute consumption")
		}
		return c.JSON(out)
	}
}

type WasteRequest struct {
	StoreID uint    `json:"store_id"`
	Date    string  `json:"date"`
	Protein string  `json:"protein"`
	Weight  float64 `json:"weight"`
	Reason  string  `json:"reason"`
	Note    string  `json:"note"`
}

// POST /api/waste-entries
func CreateWasteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body WasteRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if sid, ok := auth.StoreIDFrom(c); ok && body.StoreID == 0 {
			body.StoreID = sid
		}
		if !auth.CanAccessStore(c, body.StoreID) {
			return fiber.NewError(fiber.StatusForbidden, "you can only log waste for your own store")
		}
		d, err := parseDate(body.Date, "date")
		if err != nil {
			return err
		}

		entry, err := svc.RecordWaste(c.UserContext(), audit.ActorFrom(c), WasteInput{
			StoreID: body.StoreID,
			Date:    d,
			Protein: body.Protein,
			Weight:  body.Weight,
			Reason:  models.WasteReason(body.Reason),
			Note:    body.Note,
		})
		switch {
		case errors.Is(err, ErrInvalidWaste), errors.Is(err, ErrUnknownProtein), errors.Is(err, ErrInvalidClose):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, "could not save waste entry")
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	}
}

// GET /api/waste-entries?store_id=1&period=2026-W09
func ListWasteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeID := uint(c.QueryInt("store_id"))
		if sid, ok := auth.StoreIDFrom(c); ok && storeID == 0 {
			storeID = sid
		}
		if !auth.CanAccessStore(c, storeID) {
			return fiber.NewError(fiber.StatusForbidden, "you can only read your own store")
		}
		period, err := meat.ParsePeriod(c.Query("period"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		from, to := period.Bounds(time.UTC)
		entries, err := svc.WasteEntries(c.UserContext(), storeID, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list waste entries")
		}
		return c.JSON(entries)
	}
}

// DELETE /api/waste-entries/:id
func DeleteWasteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid waste entry id")
		}

		var entry models.WasteEntry
		if err := svc.db.WithContext(c.UserContext()).First(&entry, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, ErrWasteNotFound.Error())
		}
		if !auth.CanAccessStore(c, entry.StoreID) {
			return fiber.NewError(fiber.StatusForbidden, "you can only change your own store")
		}

		_, err = svc.DeleteWaste(c.UserContext(), audit.ActorFrom(c), uint(id))
		if errors.Is(err, ErrWasteNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete waste entry")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
