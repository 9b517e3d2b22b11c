package phone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

const ConsumerGroup = "phone-wallet-service"

// SagaHandlers is the resolver hop of the purchase and exchange sagas, the
// owning side of phone-wallet associations and the requesting side of
// debit-card associations.
type SagaHandlers struct {
	svc    *Service
	logger *slog.Logger
}

func NewSagaHandlers(svc *Service, logger *slog.Logger) *SagaHandlers {
	return &SagaHandlers{svc: svc, logger: logger}
}

func (h *SagaHandlers) Register(sub messaging.Subscriber) error {
	routes := map[messaging.Topic]messaging.Handler{
		messaging.TopicPurchaseYankiValidationRequest: h.validatePurchase,
		messaging.TopicExchangeYankiValidationRequest: h.validateExchange,
		messaging.TopicExchangeSuccess:                h.recordExchange,
		messaging.PhoneWalletAssociation.Request:      h.answerPhoneWalletAssociation,
		messaging.DebitCardAssociation.Success:        h.linkCard,
		messaging.DebitCardAssociation.Failed:         h.cardAssociationFailed,
	}
	for topic, handler := range routes {
		if err := sub.Subscribe(ConsumerGroup, topic, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (h *SagaHandlers) validatePurchase(ctx context.Context, env messaging.Envelope) error {
	var p messaging.PurchasePayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		now := h.svc.now()
		card, err := resolveMethod(ctx, tx, p.PaymentMethod)
		if err == nil && card == "" {
			err = fmt.Errorf("%w: purchase validation needs a phone wallet, got %s", domain.ErrInvalidOperation, p.PaymentMethod.Type)
		}
		if err != nil {
			if !domain.IsRejection(err) {
				return err
			}
			h.logger.Warn("purchase payment method rejected", "saga_id", env.SagaID, "phone", p.PaymentMethod.ID, "error", err)
			p.Reason = err.Error()
			return saga.Emit(ctx, tx, h.svc.codec, env, messaging.TopicPurchaseYankiValidationFailed, p.WalletID.String(), p, saga.StatusFailed, now)
		}
		p.CardNumber = card
		return saga.Emit(ctx, tx, h.svc.codec, env, messaging.TopicPurchaseYankiValidationSuccess, card, p, saga.StatusInProgress, now)
	})
}

// validateExchange resolves each phone-funded side on its own; either
// failing fails the exchange.
func (h *SagaHandlers) validateExchange(ctx context.Context, env messaging.Envelope) error {
	var p messaging.ExchangePayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		now := h.svc.now()
		buyerCard, err := resolveMethod(ctx, tx, p.BuyerPaymentMethod)
		if err != nil {
			err = fmt.Errorf("buyer: %w", err)
		} else {
			p.BuyerCardNumber = buyerCard
			var sellerCard string
			sellerCard, err = resolveMethod(ctx, tx, p.SellerPaymentMethod)
			if err != nil {
				err = fmt.Errorf("seller: %w", err)
			}
			p.SellerCardNumber = sellerCard
		}
		if err != nil {
			if !domain.IsRejection(err) {
				return err
			}
			h.logger.Warn("exchange payment method rejected", "saga_id", env.SagaID, "petition", p.PetitionID, "error", err)
			p.Reason = err.Error()
			return saga.Emit(ctx, tx, h.svc.codec, env, messaging.TopicExchangeYankiValidationFailed, p.PetitionID.String(), p, saga.StatusFailed, now)
		}
		key := p.BuyerPaymentMethod.ID
		if p.BuyerCardNumber != "" {
			key = p.BuyerCardNumber
		}
		return saga.Emit(ctx, tx, h.svc.codec, env, messaging.TopicExchangeYankiValidationSuccess, key, p, saga.StatusInProgress, now)
	})
}

// recordExchange keeps a movement on each phone wallet that took part in a
// settled exchange.
func (h *SagaHandlers) recordExchange(ctx context.Context, env messaging.Envelope) error {
	var p messaging.ExchangePayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	var fromPhone, toPhone string
	if p.BuyerPaymentMethod.IsPhoneWallet() {
		fromPhone = p.BuyerPaymentMethod.ID
	}
	if p.SellerPaymentMethod.IsPhoneWallet() {
		toPhone = p.SellerPaymentMethod.ID
	}
	if fromPhone == "" && toPhone == "" {
		return nil
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		err := h.svc.recordMovements(ctx, tx, fromPhone, toPhone, p.PaymentAmount, h.svc.now())
		if errors.Is(err, domain.ErrNotFound) {
			return messaging.Drop(err)
		}
		return err
	})
}

func (h *SagaHandlers) answerPhoneWalletAssociation(ctx context.Context, env messaging.Envelope) error {
	var p messaging.AssociationPayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	assoc := messaging.PhoneWalletAssociation
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		now := h.svc.now()
		key := p.WalletID.String()

		err := walletExists(ctx, tx, p.Reference)
		if err != nil {
			if !domain.IsRejection(err) {
				return err
			}
			h.logger.Warn("phone wallet association rejected", "wallet", p.WalletID, "error", err)
			p.Reason = err.Error()
			return saga.Emit(ctx, tx, h.svc.codec, env, assoc.Failed, key, p, saga.StatusFailed, now)
		}
		return saga.Emit(ctx, tx, h.svc.codec, env, assoc.Success, key, p, saga.StatusInProgress, now)
	})
}

func walletExists(ctx context.Context, tx Tx, reference string) error {
	id, err := uuid.Parse(reference)
	if err != nil {
		return fmt.Errorf("%w: phone wallet id %q", domain.ErrInvalidArgument, reference)
	}
	_, err = tx.Wallet(ctx, id)
	return err
}

func (h *SagaHandlers) linkCard(ctx context.Context, env messaging.Envelope) error {
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
			h.logger.Warn("card confirmed for a missing phone wallet", "saga_id", env.SagaID, "wallet", p.WalletID)
			return saga.Conclude(ctx, tx, env, saga.StatusFailed, now)
		}
		if err != nil {
			return err
		}
		card := p.Reference
		w.CardNumber = &card
		w.Status = WalletActive
		w.UpdatedAt = now
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		h.logger.Info("debit card associated", "wallet", w.ID, "phone", w.PhoneNumber)
		return saga.Conclude(ctx, tx, env, saga.StatusSucceeded, now)
	})
}

func (h *SagaHandlers) cardAssociationFailed(ctx context.Context, env messaging.Envelope) error {
	var p messaging.AssociationPayload
	if err := env.Decode(h.svc.codec, &p); err != nil {
		return err
	}
	return h.svc.store.WithTx(ctx, func(tx Tx) error {
		if seen, err := saga.Seen(ctx, tx, ConsumerGroup, env, h.logger); seen || err != nil {
			return err
		}
		h.logger.Warn("debit card association failed", "wallet", p.WalletID, "reason", p.Reason)
		return saga.Conclude(ctx, tx, env, saga.StatusFailed, h.svc.now())
	})
}
