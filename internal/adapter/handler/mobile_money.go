package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/phone"
)

// MobileMoneyHandler serves phone wallets.
type MobileMoneyHandler struct {
	Service *phone.Service
	Logger  *slog.Logger
}

type CreatePhoneWalletRequest struct {
	PhoneNumber string `json:"phone_number"`
	OwnerName   string `json:"owner_name"`
}

type UpdateOwnerRequest struct {
	OwnerName string `json:"owner_name"`
}

type AssociateCardRequest struct {
	CardNumber string `json:"card_number"`
}

type SendPaymentRequest struct {
	FromPhone string          `json:"from_phone"`
	ToPhone   string          `json:"to_phone"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *MobileMoneyHandler) CreateWallet(c *fiber.Ctx) error {
	var req CreatePhoneWalletRequest
	if err := c.BodyParser(&req); err != nil {
		h.Logger.Warn("Invalid phone wallet body", "error", err)
		return badRequest(c, "Invalid body")
	}
	w, err := h.Service.CreateWallet(c.Context(), req.PhoneNumber, req.OwnerName)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *MobileMoneyHandler) GetWallet(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	w, err := h.Service.GetWallet(c.Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(w)
}

func (h *MobileMoneyHandler) GetWalletByPhone(c *fiber.Ctx) error {
	w, err := h.Service.WalletByPhone(c.Context(), c.Params("phone"))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(w)
}

func (h *MobileMoneyHandler) ListWallets(c *fiber.Ctx) error {
	wallets, err := h.Service.ListWallets(c.Context())
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(wallets)
}

func (h *MobileMoneyHandler) UpdateOwner(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var req UpdateOwnerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	w, err := h.Service.UpdateOwner(c.Context(), id, req.OwnerName)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(w)
}

func (h *MobileMoneyHandler) DeleteWallet(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if err := h.Service.DeleteWallet(c.Context(), id); err != nil {
		return fail(c, h.Logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MobileMoneyHandler) Movements(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	rows, err := h.Service.Movements(c.Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(rows)
}

// AssociateCard answers 202; the wallet turns ACTIVE once the bank confirms.
func (h *MobileMoneyHandler) AssociateCard(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var req AssociateCardRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	ticket, err := h.Service.AssociateCard(c.Context(), id, req.CardNumber)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(ticket)
}

func (h *MobileMoneyHandler) SendPayment(c *fiber.Ctx) error {
	var req SendPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}

	h.Logger.Info("Payment request", "from", req.FromPhone, "to", req.ToPhone, "amount", req.Amount)

	// The bank sees the caller's key, so a retried payment transfers once.
	var ref string
	if key := c.Get("Idempotency-Key"); key != "" {
		ref = "phone-payment:" + key
	}
	payment, err := h.Service.SendPayment(c.Context(), ref, req.FromPhone, req.ToPhone, req.Amount)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}
