package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

type TransactionHandler struct {
	Engine *bank.Engine
	Logger *slog.Logger
}

// Request Models
type MoneyRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency domain.Currency `json:"currency"`
}

type TransferRequest struct {
	SenderAccount   string          `json:"sender_account"`
	ReceiverAccount string          `json:"receiver_account"`
	Amount          decimal.Decimal `json:"amount"`
}

type AdjustRequest struct {
	Direction bank.Direction  `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	CreditID  string          `json:"credit_id,omitempty"`
}

// Deposit API
func (h *TransactionHandler) Deposit(c *fiber.Ctx) error {
	var req MoneyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	txn, err := h.Engine.Deposit(c.Context(), c.Params("number"), domain.NewMoney(req.Amount, req.Currency))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// Withdraw API
func (h *TransactionHandler) Withdraw(c *fiber.Ctx) error {
	var req MoneyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	txn, err := h.Engine.Withdraw(c.Context(), c.Params("number"), domain.NewMoney(req.Amount, req.Currency))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// Transfer API
func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	txn, err := h.Engine.Transfer(c.Context(), req.SenderAccount, req.ReceiverAccount, req.Amount)
	if err != nil {
		return fail(c, h.Logger, err)
	}

	h.Logger.Info("💸 Transfer booked", "from", req.SenderAccount, "to", req.ReceiverAccount, "amount", req.Amount)
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// AdjustBalance API, used by the credit product.
func (h *TransactionHandler) AdjustBalance(c *fiber.Ctx) error {
	var req AdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	account, err := h.Engine.AdjustBalance(c.Context(), c.Params("number"), bank.Adjustment{
		Direction: req.Direction,
		Amount:    req.Amount,
		CreditID:  req.CreditID,
	})
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(account)
}

// GetHistory returns the account's transaction log, oldest first.
func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	history, err := h.Engine.Transactions(c.Context(), c.Params("number"))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(history)
}
