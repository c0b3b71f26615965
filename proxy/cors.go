package proxy

import (
	"github.com/gofiber/fiber/v2"
)

const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "POST, OPTIONS"
)

// setCORSHeaders adds the cross-origin headers every relay response carries,
// errors included.
func setCORSHeaders(c *fiber.Ctx, methods string) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, corsAllowOrigin)
	c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
	c.Set(fiber.HeaderAccessControlAllowMethods, methods)
}

// preflight answers an OPTIONS request. It never authenticates.
func preflight(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).SendString("ok")
}

func methodNotAllowed(c *fiber.Ctx, methods string) error {
	c.Set(fiber.HeaderAllow, methods)
	return c.Status(fiber.StatusMethodNotAllowed).JSON(errorBody("method not allowed"))
}
