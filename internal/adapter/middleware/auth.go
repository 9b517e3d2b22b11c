package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ibrahimkeyboad/gosettle/internal/core/security"
)

// AdminOnly admits requests whose Bearer key hashes to keyHash. With no
// hash configured every request is refused.
func AdminOnly(keyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Get Token from Header
		authHeader := c.Get(fiber.HeaderAuthorization) // "Bearer gs_admin_..."
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing API Key"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Header Format"})
		}

		// 2. Compare hashes (we never keep the plain key)
		if keyHash == "" || !security.ValidateKey(parts[1], keyHash) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid API Key"})
		}

		return c.Next()
	}
}
