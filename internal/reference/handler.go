package reference

import (
	"github.com/gofiber/fiber/v2"
)

// POST /api/reference/reload
func ReloadHandler(w *Watcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := w.Reload(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "reference tables rejected, previous tables kept: "+err.Error())
		}
		return c.JSON(fiber.Map{
			"status":   "reloaded",
			"proteins": w.holder.Load().Proteins(),
		})
	}
}
