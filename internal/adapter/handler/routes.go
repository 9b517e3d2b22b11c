package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ibrahimkeyboad/gosettle/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/coin"
	"github.com/ibrahimkeyboad/gosettle/internal/core/config"
	"github.com/ibrahimkeyboad/gosettle/internal/core/phone"
)

// NewApp builds a fiber app with the middleware every service shares.
func NewApp(service string, cfg config.HTTP, logger *slog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               service,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(logger))
	app.Get("/healthz", Health(service))
	return app
}

func RegisterBank(app *fiber.App, engine *bank.Engine, idem middleware.IdempotencyStore, adminKeyHash string, logger *slog.Logger) {
	accounts := &AccountHandler{Engine: engine, Logger: logger}
	transactions := &TransactionHandler{Engine: engine, Logger: logger}
	cards := &CardHandler{Engine: engine, Logger: logger}
	sagas := &SagaHandler{Lookup: engine.Saga, Logger: logger}
	admin := &AdminHandler{Engine: engine, Logger: logger}
	once := middleware.Idempotency(idem, logger)

	api := app.Group("/v1")
	api.Post("/accounts", once, accounts.CreateAccount)
	api.Get("/accounts", accounts.ListAccounts)
	api.Get("/accounts/:number", accounts.GetAccount)
	api.Patch("/accounts/:number", accounts.UpdateTerms)
	api.Delete("/accounts/:number", accounts.DeleteAccount)
	api.Get("/accounts/:number/transactions", transactions.GetHistory)
	api.Post("/accounts/:number/deposit", once, transactions.Deposit)
	api.Post("/accounts/:number/withdraw", once, transactions.Withdraw)
	api.Post("/accounts/:number/adjust", once, transactions.AdjustBalance)
	api.Post("/transfers", once, transactions.Transfer)

	api.Post("/cards", once, cards.IssueCard)
	api.Post("/cards/transfer", once, cards.Transfer)
	api.Get("/cards/:number", cards.GetCard)
	api.Delete("/cards/:number", cards.DeleteCard)
	api.Post("/cards/:number/withdraw", once, cards.Withdraw)

	api.Get("/sagas/:id", sagas.GetSaga)

	private := api.Group("/admin", middleware.AdminOnly(adminKeyHash))
	private.Post("/movements/reset", admin.ResetMovements)
}

func RegisterCoin(app *fiber.App, svc *coin.Service, idem middleware.IdempotencyStore, logger *slog.Logger) {
	h := &CoinHandler{Service: svc, Logger: logger}
	sagas := &SagaHandler{Lookup: svc.Saga, Logger: logger}
	once := middleware.Idempotency(idem, logger)

	api := app.Group("/v1")
	api.Post("/wallets", once, h.CreateWallet)
	api.Get("/wallets", h.ListWallets)
	api.Get("/wallets/:id", h.GetWallet)
	api.Delete("/wallets/:id", h.DeleteWallet)
	api.Post("/wallets/:id/block", h.BlockWallet)
	api.Get("/wallets/:id/transactions", h.Transactions)
	api.Post("/wallets/:id/purchase", once, h.Purchase)
	api.Post("/wallets/:id/bank-account", once, h.AssociateAccount)
	api.Post("/wallets/:id/phone-wallet", once, h.AssociatePhoneWallet)

	api.Post("/rates", once, h.CreateRate)
	api.Get("/rates", h.ListRates)
	api.Get("/rates/current", h.CurrentRate)

	api.Post("/petitions", once, h.CreatePetition)
	api.Get("/petitions", h.ListPetitions)
	api.Get("/petitions/:id", h.GetPetition)
	api.Post("/petitions/:id/accept", once, h.AcceptPetition)
	api.Post("/petitions/:id/reject", h.RejectPetition)

	api.Get("/sagas/:id", sagas.GetSaga)
}

func RegisterPhone(app *fiber.App, svc *phone.Service, idem middleware.IdempotencyStore, logger *slog.Logger) {
	h := &MobileMoneyHandler{Service: svc, Logger: logger}
	sagas := &SagaHandler{Lookup: svc.Saga, Logger: logger}
	once := middleware.Idempotency(idem, logger)

	api := app.Group("/v1")
	api.Post("/phone-wallets", once, h.CreateWallet)
	api.Get("/phone-wallets", h.ListWallets)
	api.Get("/phone-wallets/by-phone/:phone", h.GetWalletByPhone)
	api.Get("/phone-wallets/:id", h.GetWallet)
	api.Patch("/phone-wallets/:id", h.UpdateOwner)
	api.Delete("/phone-wallets/:id", h.DeleteWallet)
	api.Get("/phone-wallets/:id/movements", h.Movements)
	api.Post("/phone-wallets/:id/card", once, h.AssociateCard)
	api.Post("/payments", once, h.SendPayment)

	api.Get("/sagas/:id", sagas.GetSaga)
}
