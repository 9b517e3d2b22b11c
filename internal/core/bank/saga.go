package bank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

const ConsumerGroup = "bank-account-service"

// SagaHandlers is the commit step of the settlement sagas and the owning
// side of account and debit-card associations.
type SagaHandlers struct {
	engine *Engine
	codec  messaging.Codec
	logger *slog.Logger
}

func NewSagaHandlers(engine *Engine, codec messaging.Codec, logger *slog.Logger) *SagaHandlers {
	return &SagaHandlers{engine: engine, codec: codec, logger: logger}
}

func (h *SagaHandlers) Register(sub messaging.Subscriber) error {
	routes := map[messaging.Topic]messaging.Handler{
		messaging.TopicPurchaseRequest:                h.handlePurchase,
		messaging.TopicPurchaseYankiValidationSuccess: h.handlePurchase,
		messaging.TopicExchangeRequest:                h.handleExchange,
		messaging.TopicExchangeYankiValidationSuccess: h.handleExchange,
		messaging.AccountAssociation.Request:          h.answerAssociation(messaging.AccountAssociation, accountExists),
		messaging.DebitCardAssociation.Request:        h.answerAssociation(messaging.DebitCardAssociation, cardExists),
	}
	for topic, handler := range routes {
		if err := sub.Subscribe(ConsumerGroup, topic, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// purchaseFunding finds and debits the account paying for a purchase.
var purchaseFunding = map[domain.PaymentMethodType]func(ctx context.Context, tx Tx, p messaging.PurchasePayload) (Account, error){
	domain.PaymentBankAccount: func(ctx context.Context, tx Tx, p messaging.PurchasePayload) (Account, error) {
		acc, err := tx.Account(ctx, p.PaymentMethod.ID)
		if err != nil {
			return Account{}, err
		}
		if err := acc.debitDirect(p.PaymentAmount); err != nil {
			return Account{}, err
		}
		return acc, nil
	},
	domain.PaymentPhoneWallet: func(ctx context.Context, tx Tx, p messaging.PurchasePayload) (Account, error) {
		if p.CardNumber == "" {
			return Account{}, fmt.Errorf("%w: phone wallet purchase arrived without a resolved card", domain.ErrInvalidOperation)
		}
		card, err := tx.Card(ctx, p.CardNumber)
		if err != nil {
			return Account{}, err
		}
		locked, err := lockLinked(ctx, tx, card.FundingOrder(), "")
		if err != nil {
			return Account{}, err
		}
		acc, _, err := fundFromCard(card, locked, func(a *Account) (decimal.Decimal, error) {
			return decimal.Zero, a.debitDirect(p.PaymentAmount)
		})
		return acc, err
	},
}

func (h *SagaHandlers) handlePurchase(ctx context.Context, env messaging.Envelope) error {
	var p messaging.PurchasePayload
	if err := env.Decode(h.codec, &p); err != nil {
		return err
	}
	return h.engine.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		now := h.engine.now()
		key := p.WalletID.String()

		acc, err := h.chargePurchase(ctx, tx, p, now)
		if err != nil {
			if !domain.IsRejection(err) {
				return err
			}
			h.logger.Warn("purchase rejected", "saga_id", env.SagaID, "wallet", p.WalletID, "error", err)
			p.Reason = err.Error()
			return saga.Emit(ctx, tx, h.codec, env, messaging.TopicPurchaseFailed, key, p, saga.StatusFailed, now)
		}

		h.logger.Info("purchase committed", "saga_id", env.SagaID, "account", acc.Number, "amount", p.PaymentAmount)
		return saga.Emit(ctx, tx, h.codec, env, messaging.TopicPurchaseSuccess, key, p, saga.StatusInProgress, now)
	})
}

func (h *SagaHandlers) chargePurchase(ctx context.Context, tx Tx, p messaging.PurchasePayload, now time.Time) (Account, error) {
	if err := domain.RequirePositive("payment amount", p.PaymentAmount); err != nil {
		return Account{}, err
	}
	if err := p.PaymentMethod.Validate(); err != nil {
		return Account{}, err
	}
	acc, err := purchaseFunding[p.PaymentMethod.Type](ctx, tx, p)
	if err != nil {
		return Account{}, err
	}
	acc.UpdatedAt = now
	if err := tx.SaveAccount(ctx, acc); err != nil {
		return Account{}, err
	}
	row := domain.NewTransaction(acc.Number, domain.TransactionDebit, p.PaymentAmount, decimal.Zero, now)
	return acc, tx.AppendTransaction(ctx, row)
}

// receivingAccount resolves the seller side of an exchange to an account
// number: the card's main account, or the account itself.
func receivingAccount(ctx context.Context, tx Tx, method domain.PaymentMethod, cardNumber string) (string, error) {
	if !method.IsPhoneWallet() {
		return method.ID, nil
	}
	if cardNumber == "" {
		return "", fmt.Errorf("%w: seller phone wallet arrived without a resolved card", domain.ErrInvalidOperation)
	}
	card, err := tx.Card(ctx, cardNumber)
	if err != nil {
		return "", err
	}
	return card.MainAccountNumber, nil
}

// exchangeFunding moves the payment from the buyer to receiverNumber.
var exchangeFunding = map[domain.PaymentMethodType]func(e *Engine, ctx context.Context, tx Tx, p messaging.ExchangePayload, receiverNumber string) (domain.Transaction, error){
	domain.PaymentBankAccount: func(e *Engine, ctx context.Context, tx Tx, p messaging.ExchangePayload, receiverNumber string) (domain.Transaction, error) {
		return e.transfer(ctx, tx, p.BuyerPaymentMethod.ID, receiverNumber, p.PaymentAmount)
	},
	domain.PaymentPhoneWallet: func(e *Engine, ctx context.Context, tx Tx, p messaging.ExchangePayload, receiverNumber string) (domain.Transaction, error) {
		if p.BuyerCardNumber == "" {
			return domain.Transaction{}, fmt.Errorf("%w: buyer phone wallet arrived without a resolved card", domain.ErrInvalidOperation)
		}
		card, err := tx.Card(ctx, p.BuyerCardNumber)
		if err != nil {
			return domain.Transaction{}, err
		}
		return e.transferFromCard(ctx, tx, card, receiverNumber, p.PaymentAmount)
	},
}

func (h *SagaHandlers) handleExchange(ctx context.Context, env messaging.Envelope) error {
	var p messaging.ExchangePayload
	if err := env.Decode(h.codec, &p); err != nil {
		return err
	}
	return h.engine.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		now := h.engine.now()
		key := p.PetitionID.String()

		debit, err := h.commitExchange(ctx, tx, p)
		if err != nil {
			if !domain.IsRejection(err) {
				return err
			}
			h.logger.Warn("exchange rejected", "saga_id", env.SagaID, "petition", p.PetitionID, "error", err)
			p.Reason = err.Error()
			return saga.Emit(ctx, tx, h.codec, env, messaging.TopicExchangeFailed, key, p, saga.StatusFailed, now)
		}

		h.logger.Info("exchange committed", "saga_id", env.SagaID, "from", debit.Reference, "amount", p.PaymentAmount)
		return saga.Emit(ctx, tx, h.codec, env, messaging.TopicExchangeSuccess, key, p, saga.StatusInProgress, now)
	})
}

func (h *SagaHandlers) commitExchange(ctx context.Context, tx Tx, p messaging.ExchangePayload) (domain.Transaction, error) {
	if err := domain.RequirePositive("payment amount", p.PaymentAmount); err != nil {
		return domain.Transaction{}, err
	}
	if err := p.BuyerPaymentMethod.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	if err := p.SellerPaymentMethod.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	receiver, err := receivingAccount(ctx, tx, p.SellerPaymentMethod, p.SellerCardNumber)
	if err != nil {
		return domain.Transaction{}, err
	}
	return exchangeFunding[p.BuyerPaymentMethod.Type](h.engine, ctx, tx, p, receiver)
}

func accountExists(ctx context.Context, tx Tx, reference string) error {
	_, err := tx.Account(ctx, reference)
	return err
}

func cardExists(ctx context.Context, tx Tx, reference string) error {
	_, err := tx.Card(ctx, domain.NormalizeCardNumber(reference))
	return err
}

// answerAssociation validates that the referenced resource exists and
// reports back on the association's success or failed channel.
func (h *SagaHandlers) answerAssociation(assoc messaging.Association, exists func(context.Context, Tx, string) error) messaging.Handler {
	return func(ctx context.Context, env messaging.Envelope) error {
		var p messaging.AssociationPayload
		if err := env.Decode(h.codec, &p); err != nil {
			return err
		}
		return h.engine.store.WithTx(ctx, func(tx Tx) error {
			if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
				return err
			}
			now := h.engine.now()
			key := p.WalletID.String()

			if err := exists(ctx, tx, p.Reference); err != nil {
				if !domain.IsRejection(err) {
					return err
				}
				h.logger.Warn("association rejected", "workflow", assoc.Workflow, "wallet", p.WalletID, "error", err)
				p.Reason = err.Error()
				return saga.Emit(ctx, tx, h.codec, env, assoc.Failed, key, p, saga.StatusFailed, now)
			}
			return saga.Emit(ctx, tx, h.codec, env, assoc.Success, key, p, saga.StatusInProgress, now)
		})
	}
}
