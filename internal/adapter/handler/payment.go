package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/adapter/client"
	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
)

// CardHandler serves debit cards and card-funded payments.
type CardHandler struct {
	Engine *bank.Engine
	Logger *slog.Logger
}

type IssueCardRequest struct {
	MainAccount    string   `json:"main_account"`
	LinkedAccounts []string `json:"linked_accounts"`
}

type CardWithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *CardHandler) IssueCard(c *fiber.Ctx) error {
	var req IssueCardRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	card, err := h.Engine.IssueCard(c.Context(), req.MainAccount, req.LinkedAccounts)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(card)
}

func (h *CardHandler) GetCard(c *fiber.Ctx) error {
	card, err := h.Engine.GetCard(c.Context(), c.Params("number"))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(card)
}

func (h *CardHandler) DeleteCard(c *fiber.Ctx) error {
	if err := h.Engine.DeleteCard(c.Context(), c.Params("number")); err != nil {
		return fail(c, h.Logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Withdraw draws cash against the card, falling back across linked accounts.
func (h *CardHandler) Withdraw(c *fiber.Ctx) error {
	var req CardWithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	txn, err := h.Engine.WithdrawWithCard(c.Context(), c.Params("number"), req.Amount)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// Transfer moves money from one card to another card's main account. The
// phone-wallet service calls it for send-payment.
func (h *CardHandler) Transfer(c *fiber.Ctx) error {
	var req client.CardTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	txn, err := h.Engine.CardTransfer(c.Context(), req.FromCard, req.ToCard, req.Amount)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}
