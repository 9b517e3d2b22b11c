package coin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

const ConsumerGroup = "coin-wallet-service"

// SagaHandlers applies the outcome of purchase, exchange and association
// sagas to the coin ledger.
type SagaHandlers struct {
	svc    *Service
	logger *slog.Logger
}

func NewSagaHandlers(svc *Service, logger *slog.Logger) *SagaHandlers {
	return &SagaHandlers{svc: svc, logger: logger}
}

func (h *SagaHandlers) Register(sub messaging.Subscriber) error {
	routes := map[messaging.Topic]messaging.Handler{
		messaging.TopicPurchaseSuccess:               h.handlePurchaseSuccess,
		messaging.TopicPurchaseFailed:                h.handlePurchaseFailure,
		messaging.TopicPurchaseYankiValidationFailed: h.handlePurchaseFailure,
		messaging.TopicExchangeSuccess:               h.handleExchangeSuccess,
		messaging.TopicExchangeFailed:                h.handleExchangeFailure,
		messaging.TopicExchangeYankiValidationFailed: h.handleExchangeFailure,
		messaging.AccountAssociation.Success:         h.mirrorAssociation(linkAccount),
		messaging.AccountAssociation.Failed:          h.associationFailed,
		messaging.PhoneWalletAssociation.Success:     h.mirrorAssociation(linkPhoneWallet),
		messaging.PhoneWalletAssociation.Failed:      h.associationFailed,
	}
	for topic, handler := range routes {
		if err := sub.Subscribe(ConsumerGroup, topic, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (h *SagaHandlers) handlePurchaseSuccess(ctx context.Context, env messaging.Envelope) error {
	var p messaging.PurchasePayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		now := h.svc.now()
		w, err := tx.Wallet(ctx, p.WalletID)
		if errors.Is(err, domain.ErrNotFound) {
			h.logger.Error("purchase paid for a wallet that no longer exists", "saga_id", env.SagaID, "wallet", p.WalletID)
			return saga.Conclude(ctx, tx, env, saga.StatusFailed, now)
		}
		if err != nil {
			return err
		}
		w.Balance = w.Balance.Add(p.CoinAmount)
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		row := domain.NewTransaction(w.ID.String(), domain.TransactionCredit, p.CoinAmount, decimal.Zero, now)
		if err := tx.AppendTransaction(ctx, row); err != nil {
			return err
		}
		h.logger.Info("purchase settled", "saga_id", env.SagaID, "wallet", w.ID, "coins", p.CoinAmount)
		return saga.Conclude(ctx, tx, env, saga.StatusSucceeded, now)
	})
}

func (h *SagaHandlers) handlePurchaseFailure(ctx context.Context, env messaging.Envelope) error {
	var p messaging.PurchasePayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		h.logger.Warn("purchase failed", "saga_id", env.SagaID, "step", env.Topic, "wallet", p.WalletID, "reason", p.Reason)
		return saga.Conclude(ctx, tx, env, saga.StatusFailed, h.svc.now())
	})
}

func (h *SagaHandlers) handleExchangeSuccess(ctx context.Context, env messaging.Envelope) error {
	var p messaging.ExchangePayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		now := h.svc.now()
		petition, err := tx.Petition(ctx, p.PetitionID)
		if err != nil {
			return notFoundIsFinal(err)
		}
		buyer, err := tx.Wallet(ctx, p.BuyerWalletID)
		if err != nil {
			return notFoundIsFinal(err)
		}
		seller, err := tx.Wallet(ctx, p.SellerWalletID)
		if err != nil {
			return notFoundIsFinal(err)
		}

		seller.release(petition.CoinAmount)
		seller.UpdatedAt = now
		if seller.Balance.LessThan(p.CoinAmount) {
			reason := fmt.Sprintf("seller wallet %s holds %s coins, exchange needs %s", seller.ID, seller.Balance, p.CoinAmount)
			h.logger.Error("exchange paid but not settled", "saga_id", env.SagaID, "petition", petition.ID, "reason", reason)
			if petition.ActiveSagaID != nil && *petition.ActiveSagaID == env.SagaID {
				petition.recordFailure(reason, now)
				if err := tx.SavePetition(ctx, petition); err != nil {
					return err
				}
			}
			if err := tx.SaveWallet(ctx, seller); err != nil {
				return err
			}
			return saga.Conclude(ctx, tx, env, saga.StatusFailed, now)
		}

		petition.Status = PetitionAccepted
		petition.ActiveSagaID = nil
		petition.UpdatedAt = now
		buyer.Balance = buyer.Balance.Add(p.CoinAmount)
		buyer.UpdatedAt = now
		seller.Balance = seller.Balance.Sub(p.CoinAmount)

		if err := tx.SavePetition(ctx, petition); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, buyer); err != nil {
			return err
		}
		if err := tx.SaveWallet(ctx, seller); err != nil {
			return err
		}
		credit := domain.NewTransaction(buyer.ID.String(), domain.TransactionCredit, p.CoinAmount, decimal.Zero, now)
		if err := tx.AppendTransaction(ctx, credit); err != nil {
			return err
		}
		debit := domain.NewTransaction(seller.ID.String(), domain.TransactionDebit, p.CoinAmount, decimal.Zero, now)
		if err := tx.AppendTransaction(ctx, debit); err != nil {
			return err
		}
		h.logger.Info("exchange settled", "saga_id", env.SagaID, "petition", petition.ID, "coins", p.CoinAmount)
		return saga.Conclude(ctx, tx, env, saga.StatusSucceeded, now)
	})
}

// handleExchangeFailure leaves balances and status alone and hands the
// petition back for another attempt, keeping a record of the failure.
func (h *SagaHandlers) handleExchangeFailure(ctx context.Context, env messaging.Envelope) error {
	var p messaging.ExchangePayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		now := h.svc.now()
		h.logger.Warn("exchange failed", "saga_id", env.SagaID, "step", env.Topic, "petition", p.PetitionID, "reason", p.Reason)

		petition, err := tx.Petition(ctx, p.PetitionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err == nil && petition.ActiveSagaID != nil && *petition.ActiveSagaID == env.SagaID {
			petition.recordFailure(p.Reason, now)
			if err := tx.SavePetition(ctx, petition); err != nil {
				return err
			}
			seller, err := tx.Wallet(ctx, petition.SellerWalletID)
			switch {
			case err == nil:
				seller.release(petition.CoinAmount)
				seller.UpdatedAt = now
				if err := tx.SaveWallet(ctx, seller); err != nil {
					return err
				}
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
		}
		return saga.Conclude(ctx, tx, env, saga.StatusFailed, now)
	})
}

func linkAccount(w *Wallet, reference string) error {
	w.BankAccountNumber = &reference
	return nil
}

func linkPhoneWallet(w *Wallet, reference string) error {
	id, err := uuid.Parse(reference)
	if err != nil {
		return messaging.Drop(fmt.Errorf("phone wallet reference %q: %w", reference, err))
	}
	w.PhoneWalletID = &id
	return nil
}

// mirrorAssociation records a confirmed reference on the requesting wallet
// and activates it.
func (h *SagaHandlers) mirrorAssociation(link func(*Wallet, string) error) messaging.Handler {
	return func(ctx context.Context, env messaging.Envelope) error {
		var p messaging.AssociationPayload
		if err := env.Decode(h.svc.codec, &p); err != nil {
			return err
		}
		return h.svc.store.WithTx(ctx, func(tx Tx) error {
			if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
				return err
			}
			now := h.svc.now()
			w, err := tx.Wallet(ctx, p.WalletID)
			if errors.Is(err, domain.ErrNotFound) {
				h.logger.Warn("association confirmed for a missing wallet", "saga_id", env.SagaID, "wallet", p.WalletID)
				return saga.Conclude(ctx, tx, env, saga.StatusFailed, now)
			}
			if err != nil {
				return err
			}
			if err := link(&w, p.Reference); err != nil {
				return err
			}
			w.activate()
			w.UpdatedAt = now
			if err := tx.SaveWallet(ctx, w); err != nil {
				return err
			}
			h.logger.Info("wallet associated", "workflow", env.Workflow, "wallet", w.ID, "status", w.Status)
			return saga.Conclude(ctx, tx, env, saga.StatusSucceeded, now)
		})
	}
}

func (h *SagaHandlers) associationFailed(ctx context.Context, env messaging.Envelope) error {
	var p messaging.AssociationPayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		h.logger.Warn("association failed", "workflow", env.Workflow, "wallet", p.WalletID, "reason", p.Reason)
		return saga.Conclude(ctx, tx, env, saga.StatusFailed, h.svc.now())
	})
}

// notFoundIsFinal turns a missing aggregate into a dropped message; there
// is nothing a redelivery could change.
func notFoundIsFinal(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return messaging.Drop(err)
	}
	return err
}
