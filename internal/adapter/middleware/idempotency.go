package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// IdempotencyStore keeps the first response sent for each key.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (status int, body []byte, found bool, err error)
	Save(ctx context.Context, key string, status int, body []byte) error
}

// Idempotency replays the cached response when a request repeats its
// Idempotency-Key. 5xx answers are not cached so the caller may retry.
func Idempotency(store IdempotencyStore, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. Get Key from Header
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}

		// 2. Check if key exists
		status, body, found, err := store.Lookup(c.Context(), key)
		if err != nil {
			logger.Error("❌ Failed to read Idempotency Key", "error", err, "key", key)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Idempotency store unavailable"})
		}
		if found {
			logger.Info("🛑 Idempotency Hit! Returning cached response", "key", key)
			c.Set("X-Idempotency-Hit", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(status).Send(body)
		}

		// 3. Run the Handler
		if err := c.Next(); err != nil {
			return err
		}

		// 4. Save the Result
		resStatus := c.Response().StatusCode()
		if resStatus >= fiber.StatusInternalServerError {
			return nil
		}
		resBody := append([]byte(nil), c.Response().Body()...)
		if err := store.Save(c.Context(), key, resStatus, resBody); err != nil {
			logger.Error("❌ Failed to save Idempotency Key", "error", err, "key", key)
		} else {
			logger.Debug("💾 Idempotency Key Saved", "key", key)
		}
		return nil
	}
}
