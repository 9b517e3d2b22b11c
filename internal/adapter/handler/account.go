package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

type AccountHandler struct {
	Engine *bank.Engine
	Logger *slog.Logger
}

// CreateAccountRequest defines what the caller sends us
type CreateAccountRequest struct {
	CustomerID          string               `json:"customer_id"`
	Kind                bank.Kind            `json:"kind"`
	Currency            domain.Currency      `json:"currency"`
	MaxFeeFreeMovements int                  `json:"max_fee_free_movements"`
	CommissionFee       decimal.Decimal      `json:"commission_fee"`
	Savings             *bank.SavingsTerms   `json:"savings,omitempty"`
	FixedTerm           *bank.FixedTermTerms `json:"fixed_term,omitempty"`
	Checking            *bank.CheckingTerms  `json:"checking,omitempty"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest

	// 1. Parse JSON
	if err := c.BodyParser(&req); err != nil {
		h.Logger.Warn("Invalid account body", "error", err)
		return badRequest(c, "Invalid request body")
	}

	// 2. Call Engine (validates kind, terms and customer type)
	account, err := h.Engine.CreateAccount(c.Context(), bank.NewAccount{
		CustomerID:          req.CustomerID,
		Kind:                req.Kind,
		Currency:            req.Currency,
		MaxFeeFreeMovements: req.MaxFeeFreeMovements,
		CommissionFee:       req.CommissionFee,
		Savings:             req.Savings,
		FixedTerm:           req.FixedTerm,
		Checking:            req.Checking,
	})
	if err != nil {
		return fail(c, h.Logger, err)
	}

	h.Logger.Info("✅ Account Created", "account", account.Number, "kind", account.Kind)

	// 3. Return Success
	return c.Status(fiber.StatusCreated).JSON(account)
}

func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	account, err := h.Engine.GetAccount(c.Context(), c.Params("number"))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) ListAccounts(c *fiber.Ctx) error {
	accounts, err := h.Engine.ListAccounts(c.Context())
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(accounts)
}

type UpdateTermsRequest struct {
	MaxFeeFreeMovements *int                 `json:"max_fee_free_movements,omitempty"`
	CommissionFee       *decimal.Decimal     `json:"commission_fee,omitempty"`
	Savings             *bank.SavingsTerms   `json:"savings,omitempty"`
	FixedTerm           *bank.FixedTermTerms `json:"fixed_term,omitempty"`
	Checking            *bank.CheckingTerms  `json:"checking,omitempty"`
}

func (h *AccountHandler) UpdateTerms(c *fiber.Ctx) error {
	var req UpdateTermsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	account, err := h.Engine.UpdateAccountTerms(c.Context(), c.Params("number"), bank.TermsUpdate{
		MaxFeeFreeMovements: req.MaxFeeFreeMovements,
		CommissionFee:       req.CommissionFee,
		Savings:             req.Savings,
		FixedTerm:           req.FixedTerm,
		Checking:            req.Checking,
	})
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(account)
}

func (h *AccountHandler) DeleteAccount(c *fiber.Ctx) error {
	if err := h.Engine.DeleteAccount(c.Context(), c.Params("number")); err != nil {
		return fail(c, h.Logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
