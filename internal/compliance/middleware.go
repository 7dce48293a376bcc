package compliance

import (
	"time"

	"meatengine/internal/auth"

	"github.com/gofiber/fiber/v2"
)

const LockoutCode = "WEEKLY_COUNT_LOCKOUT"

// Middleware rejects operational requests from stores that missed the
// weekly count. It must run after auth.JWTMiddleware.
func Middleware(gate *Gate, now func() time.Time) fiber.Handler {
	if now == nil {
		now = time.Now
	}
	return func(c *fiber.Ctx) error {
		role, ok := auth.RoleFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role missing from request")
		}
		storeID, hasStore := auth.StoreIDFrom(c)
		if !hasStore && !role.Elevated() {
			// nothing to lock; store scoping is enforced by the handlers
			return c.Next()
		}

		d := gate.Check(c.UserContext(), storeID, role, now())
		if !d.Allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":  "weekly inventory count is overdue, submit it to unlock",
				"code":   LockoutCode,
				"window": d.WindowKey,
			})
		}
		return c.Next()
	}
}

// StatusHandler reports the caller's gate decision without blocking.
func StatusHandler(gate *Gate, now func() time.Time) fiber.Handler {
	if now == nil {
		now = time.Now
	}
	return func(c *fiber.Ctx) error {
		role, _ := auth.RoleFrom(c)
		storeID, _ := auth.StoreIDFrom(c)
		if role.Elevated() {
			if sid := c.QueryInt("store_id"); sid > 0 {
				storeID = uint(sid)
				role = ""
			}
		}
		t := now()
		return c.JSON(fiber.Map{
			"store_id": storeID,
			"decision": gate.Check(c.UserContext(), storeID, role, t),
			"window":   gate.Schedule().WindowAt(t),
		})
	}
}
