package audit

import (
	"meatengine/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// ActorFrom reads the authenticated user off the request.
func ActorFrom(c *fiber.Ctx) Actor {
	email, _ := c.Locals(auth.CtxEmailKey).(string)
	return Actor{UserID: auth.UserIDFrom(c), UserName: email}
}
