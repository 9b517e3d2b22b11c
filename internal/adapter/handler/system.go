package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

// SagaHandler exposes the saga instances a service has recorded.
type SagaHandler struct {
	Lookup func(ctx context.Context, id uuid.UUID) (saga.Instance, error)
	Logger *slog.Logger
}

func (h *SagaHandler) GetSaga(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	inst, err := h.Lookup(c.Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(inst)
}

// AdminHandler holds operator-only bank operations.
type AdminHandler struct {
	Engine *bank.Engine
	Logger *slog.Logger
}

// ResetMovements zeroes every account's monthly movement counter.
func (h *AdminHandler) ResetMovements(c *fiber.Ctx) error {
	n, err := h.Engine.ResetMonthlyMovements(c.Context())
	if err != nil {
		return fail(c, h.Logger, err)
	}
	h.Logger.Info("🔄 Monthly movements reset", "accounts", n)
	return c.JSON(fiber.Map{"status": "success", "accounts_reset": n})
}

func Health(service string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": service})
	}
}
