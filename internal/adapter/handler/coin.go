package handler

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/coin"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// CoinHandler serves coin wallets, rates, purchases and petitions.
type CoinHandler struct {
	Service *coin.Service
	Logger  *slog.Logger
}

type CreateCoinWalletRequest struct {
	OwnerName string `json:"owner_name"`
}

type CreateRateRequest struct {
	BuyRate       decimal.Decimal `json:"buy_rate"`
	SellRate      decimal.Decimal `json:"sell_rate"`
	EffectiveFrom time.Time       `json:"effective_from"`
}

type PurchaseRequest struct {
	CoinAmount    decimal.Decimal      `json:"coin_amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

type CreatePetitionRequest struct {
	BuyerWalletID      uuid.UUID            `json:"buyer_wallet_id"`
	SellerWalletID     uuid.UUID            `json:"seller_wallet_id"`
	CoinAmount         decimal.Decimal      `json:"coin_amount"`
	BuyerPaymentMethod domain.PaymentMethod `json:"buyer_payment_method"`
}

type AcceptPetitionRequest struct {
	SellerPaymentMethod domain.PaymentMethod `json:"seller_payment_method"`
}

type AssociateAccountRequest struct {
	AccountNumber string `json:"account_number"`
}

type AssociatePhoneWalletRequest struct {
	PhoneWalletID uuid.UUID `json:"phone_wallet_id"`
}

func (h *CoinHandler) CreateWallet(c *fiber.Ctx) error {
	var req CreateCoinWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	w, err := h.Service.CreateWallet(c.Context(), req.OwnerName)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *CoinHandler) GetWallet(c *fiber.Ctx) error {
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

func (h *CoinHandler) ListWallets(c *fiber.Ctx) error {
	wallets, err := h.Service.ListWallets(c.Context())
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(wallets)
}

func (h *CoinHandler) BlockWallet(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	w, err := h.Service.BlockWallet(c.Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(w)
}

func (h *CoinHandler) DeleteWallet(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	if err := h.Service.DeleteWallet(c.Context(), id); err != nil {
		return fail(c, h.Logger, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CoinHandler) Transactions(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	rows, err := h.Service.Transactions(c.Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(rows)
}

func (h *CoinHandler) CreateRate(c *fiber.Ctx) error {
	var req CreateRateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	rate, err := h.Service.CreateRate(c.Context(), req.BuyRate, req.SellRate, req.EffectiveFrom)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rate)
}

func (h *CoinHandler) CurrentRate(c *fiber.Ctx) error {
	rate, err := h.Service.CurrentRate(c.Context())
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(rate)
}

func (h *CoinHandler) ListRates(c *fiber.Ctx) error {
	rates, err := h.Service.ListRates(c.Context())
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(rates)
}

// Purchase starts a purchase saga and answers 202 with its ticket.
func (h *CoinHandler) Purchase(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	ticket, err := h.Service.Purchase(c.Context(), id, req.CoinAmount, req.PaymentMethod)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(ticket)
}

func (h *CoinHandler) AssociateAccount(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var req AssociateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	ticket, err := h.Service.AssociateAccount(c.Context(), id, req.AccountNumber)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(ticket)
}

func (h *CoinHandler) AssociatePhoneWallet(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var req AssociatePhoneWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	ticket, err := h.Service.AssociatePhoneWallet(c.Context(), id, req.PhoneWalletID)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(ticket)
}

func (h *CoinHandler) CreatePetition(c *fiber.Ctx) error {
	var req CreatePetitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	p, err := h.Service.CreatePetition(c.Context(), coin.NewPetition{
		BuyerWalletID:      req.BuyerWalletID,
		SellerWalletID:     req.SellerWalletID,
		CoinAmount:         req.CoinAmount,
		BuyerPaymentMethod: req.BuyerPaymentMethod,
	})
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *CoinHandler) GetPetition(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	p, err := h.Service.GetPetition(c.Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(p)
}

// ListPetitions accepts an optional ?status= filter.
func (h *CoinHandler) ListPetitions(c *fiber.Ctx) error {
	petitions, err := h.Service.ListPetitions(c.Context(), coin.PetitionStatus(c.Query("status")))
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(petitions)
}

// AcceptPetition starts an exchange saga and answers 202 with its ticket.
func (h *CoinHandler) AcceptPetition(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	var req AcceptPetitionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid body")
	}
	ticket, err := h.Service.AcceptPetition(c.Context(), id, req.SellerPaymentMethod)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(ticket)
}

func (h *CoinHandler) RejectPetition(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Logger, err)
	}
	p, err := h.Service.RejectPetition(c.Context(), id)
	if err != nil {
		return fail(c, h.Logger, err)
	}
	return c.JSON(p)
}
