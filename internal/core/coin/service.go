// Package coin is the coin-wallet ledger and the entry point of the purchase
// and exchange sagas.
package coin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

type Service struct {
	store  Store
	codec  messaging.Codec
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, codec messaging.Codec, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		codec:  codec,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Service) WithClock(nowFn func() time.Time) {
	s.now = nowFn
}

// Ticket acknowledges a request whose outcome arrives asynchronously.
type Ticket struct {
	SagaID        uuid.UUID        `json:"saga_id"`
	Step          messaging.Topic  `json:"step"`
	PaymentAmount *decimal.Decimal `json:"payment_amount,omitempty"`
}

func (s *Service) CreateWallet(ctx context.Context, ownerName string) (Wallet, error) {
	if ownerName == "" {
		return Wallet{}, fmt.Errorf("%w: owner name is required", domain.ErrInvalidArgument)
	}
	now := s.now()
	w := Wallet{
		ID:        uuid.New(),
		OwnerName: ownerName,
		Balance:   decimal.Zero,
		Status:    WalletPendingOperationsApproval,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateWallet(ctx, w)
	})
	if err != nil {
		return Wallet{}, err
	}
	s.logger.Info("coin wallet created", "wallet", w.ID)
	return w, nil
}

func (s *Service) GetWallet(ctx context.Context, id uuid.UUID) (Wallet, error) {
	return s.store.Wallet(ctx, id)
}

func (s *Service) ListWallets(ctx context.Context) ([]Wallet, error) {
	return s.store.Wallets(ctx)
}

func (s *Service) BlockWallet(ctx context.Context, id uuid.UUID) (Wallet, error) {
	var blocked Wallet
	err := s.store.WithTx(ctx, func(tx Tx) error {
		w, err := tx.Wallet(ctx, id)
		if err != nil {
			return err
		}
		w.Status = WalletBlocked
		w.UpdatedAt = s.now()
		blocked = w
		return tx.SaveWallet(ctx, w)
	})
	return blocked, err
}

// DeleteWallet removes a wallet that holds no coins.
func (s *Service) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		w, err := tx.Wallet(ctx, id)
		if err != nil {
			return err
		}
		if !w.Balance.IsZero() {
			return fmt.Errorf("%w: wallet %s still holds %s coins", domain.ErrInvalidOperation, id, w.Balance)
		}
		return tx.DeleteWallet(ctx, id)
	})
}

func (s *Service) Transactions(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	if _, err := s.store.Wallet(ctx, walletID); err != nil {
		return nil, err
	}
	return s.store.Transactions(ctx, walletID)
}

func (s *Service) Saga(ctx context.Context, id uuid.UUID) (saga.Instance, error) {
	return s.store.Instance(ctx, id)
}

// CreateRate publishes a new rate. A zero effectiveFrom means now.
func (s *Service) CreateRate(ctx context.Context, buyRate, sellRate decimal.Decimal, effectiveFrom time.Time) (ExchangeRate, error) {
	if err := domain.RequirePositive("buy rate", buyRate); err != nil {
		return ExchangeRate{}, err
	}
	if err := domain.RequirePositive("sell rate", sellRate); err != nil {
		return ExchangeRate{}, err
	}
	now := s.now()
	if effectiveFrom.IsZero() {
		effectiveFrom = now
	}
	rate := ExchangeRate{
		ID:            uuid.New(),
		BuyRate:       buyRate,
		SellRate:      sellRate,
		EffectiveFrom: effectiveFrom,
		CreatedAt:     now,
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateRate(ctx, rate)
	})
	if err != nil {
		return ExchangeRate{}, err
	}
	s.logger.Info("exchange rate created", "buy", buyRate, "sell", sellRate, "effective_from", effectiveFrom)
	return rate, nil
}

func (s *Service) CurrentRate(ctx context.Context) (ExchangeRate, error) {
	var rate ExchangeRate
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		rate, err = tx.CurrentRate(ctx, s.now())
		return err
	})
	return rate, err
}

func (s *Service) ListRates(ctx context.Context) ([]ExchangeRate, error) {
	return s.store.Rates(ctx)
}

// purchaseRoutes picks the first channel of a purchase by payment method.
var purchaseRoutes = map[domain.PaymentMethodType]messaging.Topic{
	domain.PaymentBankAccount: messaging.TopicPurchaseRequest,
	domain.PaymentPhoneWallet: messaging.TopicPurchaseYankiValidationRequest,
}

// Purchase prices coinAmount at the current sell rate and starts a purchase
// saga paid with method. The wallet is credited when purchase-success
// comes back.
func (s *Service) Purchase(ctx context.Context, walletID uuid.UUID, coinAmount decimal.Decimal, method domain.PaymentMethod) (Ticket, error) {
	if err := domain.RequirePositive("coin amount", coinAmount); err != nil {
		return Ticket{}, err
	}
	if err := method.Validate(); err != nil {
		return Ticket{}, err
	}
	var ticket Ticket
	err := s.store.WithTx(ctx, func(tx Tx) error {
		w, err := tx.Wallet(ctx, walletID)
		if err != nil {
			return err
		}
		if !w.CanBuy() {
			return fmt.Errorf("%w: wallet %s is %s", domain.ErrNotEligible, w.ID, w.Status)
		}
		now := s.now()
		rate, err := tx.CurrentRate(ctx, now)
		if err != nil {
			return err
		}
		amount := domain.RoundHalfUp2(coinAmount.Mul(rate.SellRate))
		payload := messaging.PurchasePayload{
			WalletID:      w.ID,
			CoinAmount:    coinAmount,
			PaymentAmount: amount,
			PaymentMethod: method,
		}
		topic := purchaseRoutes[method.Type]
		sagaID, err := saga.Start(ctx, tx, s.codec, messaging.WorkflowPurchase, topic, method.ID, payload, now)
		if err != nil {
			return err
		}
		ticket = Ticket{SagaID: sagaID, Step: topic, PaymentAmount: &amount}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.logger.Info("purchase requested", "saga_id", ticket.SagaID, "wallet", walletID, "coins", coinAmount, "amount", ticket.PaymentAmount)
	return ticket, nil
}

// AssociateAccount asks the bank-account service to confirm accountNumber
// before the wallet records it.
func (s *Service) AssociateAccount(ctx context.Context, walletID uuid.UUID, accountNumber string) (Ticket, error) {
	if accountNumber == "" {
		return Ticket{}, fmt.Errorf("%w: account number is required", domain.ErrInvalidArgument)
	}
	return s.requestAssociation(ctx, messaging.AccountAssociation, walletID, accountNumber)
}

// AssociatePhoneWallet asks the phone-wallet service to confirm phoneWalletID
// before the wallet records it.
func (s *Service) AssociatePhoneWallet(ctx context.Context, walletID, phoneWalletID uuid.UUID) (Ticket, error) {
	if phoneWalletID == uuid.Nil {
		return Ticket{}, fmt.Errorf("%w: phone wallet id is required", domain.ErrInvalidArgument)
	}
	return s.requestAssociation(ctx, messaging.PhoneWalletAssociation, walletID, phoneWalletID.String())
}

func (s *Service) requestAssociation(ctx context.Context, assoc messaging.Association, walletID uuid.UUID, reference string) (Ticket, error) {
	var ticket Ticket
	err := s.store.WithTx(ctx, func(tx Tx) error {
		w, err := tx.Wallet(ctx, walletID)
		if err != nil {
			return err
		}
		payload := messaging.AssociationPayload{WalletID: w.ID, Reference: reference}
		sagaID, err := saga.Start(ctx, tx, s.codec, assoc.Workflow, assoc.Request, reference, payload, s.now())
		if err != nil {
			return err
		}
		ticket = Ticket{SagaID: sagaID, Step: assoc.Request}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.logger.Info("association requested", "workflow", assoc.Workflow, "saga_id", ticket.SagaID, "wallet", walletID)
	return ticket, nil
}
