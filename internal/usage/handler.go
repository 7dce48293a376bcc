package usage

import (
	"errors"
	"time"

	"meatengine/internal/audit"
	"meatengine/internal/auth"
	"meatengine/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type EntryRequest struct {
	StoreID  uint    `json:"store_id"`
	Item     string  `json:"item"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Quantity float64 `json:"quantity"`
	Source   string  `json:"source"`
	Note     string  `json:"note"`
}

func (r EntryRequest) entry() (Entry, error) {
	d, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return Entry{}, fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	return Entry{
		StoreID:  r.StoreID,
		Item:     r.Item,
		Date:     d,
		Quantity: r.Quantity,
		Source:   models.UsageSource(r.Source),
		Note:     r.Note,
	}, nil
}

// POST /api/usage-records
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body EntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if sid, ok := auth.StoreIDFrom(c); ok && body.StoreID == 0 {
			body.StoreID = sid
		}
		if !auth.CanAccessStore(c, body.StoreID) {
			return fiber.NewError(fiber.StatusForbidden, "you can only record usage for your own store")
		}
		e, err := body.entry()
		if err != nil {
			return err
		}

		rec, err := svc.Append(c.UserContext(), audit.ActorFrom(c), e)
		if err != nil {
			return toHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// POST /api/usage-records/:id/correct
func CorrectHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid record id")
		}
		var body EntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if !auth.CanAccessStore(c, body.StoreID) {
			return fiber.NewError(fiber.StatusForbidden, "you can only correct usage for your own store")
		}
		e, err := body.entry()
		if err != nil {
			return err
		}

		rec, err := svc.Correct(c.UserContext(), audit.ActorFrom(c), id, e)
		if err != nil {
			return toHTTP(err)
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// GET /api/usage-records?store_id=1&from=2026-03-02&to=2026-03-09
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeID := uint(c.QueryInt("store_id"))
		if sid, ok := auth.StoreIDFrom(c); ok && storeID == 0 {
			storeID = sid
		}
		if !auth.CanAccessStore(c, storeID) {
			return fiber.NewError(fiber.StatusForbidden, "you can only read your own store")
		}
		from, err := time.Parse(dateLayout, c.Query("from"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "from must be YYYY-MM-DD")
		}
		to, err := time.Parse(dateLayout, c.Query("to"))
		if err != nil || !to.After(from) {
			return fiber.NewError(fiber.StatusBadRequest, "to must be a date after from")
		}

		recs, err := svc.Effective(c.UserContext(), []uint{storeID}, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load usage records")
		}
		return c.JSON(recs)
	}
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRecord):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadySuperseded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "could not save usage record")
}
