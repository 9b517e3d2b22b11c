package handler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, fiber.StatusNotFound},
	{domain.ErrInvalidArgument, fiber.StatusBadRequest},
	{domain.ErrInsufficientFunds, fiber.StatusPaymentRequired},
	{domain.ErrMovementLimitReached, fiber.StatusTooManyRequests},
	{domain.ErrWithdrawalNotAllowed, fiber.StatusForbidden},
	{domain.ErrInvalidOperation, fiber.StatusUnprocessableEntity},
	{domain.ErrNotEligible, fiber.StatusConflict},
	{domain.ErrServiceUnavailable, fiber.StatusServiceUnavailable},
}

// StatusFor maps an error onto its HTTP status.
func StatusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fiber.StatusInternalServerError
}

// fail writes err as {"error": msg}. Internal failures are logged and
// hidden from the caller.
func fail(c *fiber.Ctx, logger *slog.Logger, err error) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{"error": "Internal server error"})
	}
	logger.Warn("request rejected", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s format", domain.ErrInvalidArgument, name)
	}
	return id, nil
}
