package coin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

type NewPetition struct {
	BuyerWalletID      uuid.UUID
	SellerWalletID     uuid.UUID
	CoinAmount         decimal.Decimal
	BuyerPaymentMethod domain.PaymentMethod
}

func (s *Service) CreatePetition(ctx context.Context, req NewPetition) (Petition, error) {
	if err := domain.RequirePositive("coin amount", req.CoinAmount); err != nil {
		return Petition{}, err
	}
	if err := req.BuyerPaymentMethod.Validate(); err != nil {
		return Petition{}, err
	}
	if req.BuyerWalletID == req.SellerWalletID {
		return Petition{}, fmt.Errorf("%w: buyer and seller must be different wallets", domain.ErrInvalidOperation)
	}
	now := s.now()
	p := Petition{
		ID:                 uuid.New(),
		CoinAmount:         req.CoinAmount,
		BuyerWalletID:      req.BuyerWalletID,
		SellerWalletID:     req.SellerWalletID,
		BuyerPaymentMethod: req.BuyerPaymentMethod,
		Status:             PetitionPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Wallet(ctx, req.BuyerWalletID); err != nil {
			return err
		}
		if _, err := tx.Wallet(ctx, req.SellerWalletID); err != nil {
			return err
		}
		return tx.CreatePetition(ctx, p)
	})
	if err != nil {
		return Petition{}, err
	}
	s.logger.Info("petition created", "petition", p.ID, "coins", p.CoinAmount)
	return p, nil
}

func (s *Service) GetPetition(ctx context.Context, id uuid.UUID) (Petition, error) {
	return s.store.Petition(ctx, id)
}

func (s *Service) ListPetitions(ctx context.Context, status PetitionStatus) ([]Petition, error) {
	return s.store.Petitions(ctx, status)
}

// RejectPetition closes a PENDING petition that has no exchange in flight.
func (s *Service) RejectPetition(ctx context.Context, id uuid.UUID) (Petition, error) {
	var rejected Petition
	err := s.store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.Petition(ctx, id)
		if err != nil {
			return err
		}
		if !p.acceptable() {
			return fmt.Errorf("%w: petition %s is %s", domain.ErrNotEligible, id, describe(p))
		}
		p.Status = PetitionRejected
		p.UpdatedAt = s.now()
		rejected = p
		return tx.SavePetition(ctx, p)
	})
	return rejected, err
}

// AcceptPetition prices the petition at the current buy rate and starts an
// exchange saga with the seller paid through sellerMethod.
func (s *Service) AcceptPetition(ctx context.Context, id uuid.UUID, sellerMethod domain.PaymentMethod) (Ticket, error) {
	if err := sellerMethod.Validate(); err != nil {
		return Ticket{}, err
	}
	var ticket Ticket
	err := s.store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.Petition(ctx, id)
		if err != nil {
			return err
		}
		if !p.acceptable() {
			return fmt.Errorf("%w: petition %s is %s", domain.ErrNotEligible, id, describe(p))
		}
		seller, err := tx.Wallet(ctx, p.SellerWalletID)
		if err != nil {
			return err
		}
		if !seller.CanSell() {
			return fmt.Errorf("%w: seller wallet %s is %s with no payable instrument", domain.ErrNotEligible, seller.ID, seller.Status)
		}
		if seller.Available().LessThan(p.CoinAmount) {
			return fmt.Errorf("%w: seller wallet %s has %s coins free (%s pledged), petition needs %s",
				domain.ErrInsufficientFunds, seller.ID, seller.Available(), seller.Reserved, p.CoinAmount)
		}
		buyer, err := tx.Wallet(ctx, p.BuyerWalletID)
		if err != nil {
			return err
		}
		if !buyer.CanBuy() {
			return fmt.Errorf("%w: buyer wallet %s is %s", domain.ErrNotEligible, buyer.ID, buyer.Status)
		}

		now := s.now()
		rate, err := tx.CurrentRate(ctx, now)
		if err != nil {
			return err
		}
		amount := domain.RoundHalfUp2(p.CoinAmount.Mul(rate.BuyRate))
		payload := messaging.ExchangePayload{
			PetitionID:          p.ID,
			BuyerWalletID:       p.BuyerWalletID,
			SellerWalletID:      p.SellerWalletID,
			CoinAmount:          p.CoinAmount,
			PaymentAmount:       amount,
			BuyerPaymentMethod:  p.BuyerPaymentMethod,
			SellerPaymentMethod: sellerMethod,
		}
		topic := messaging.TopicExchangeRequest
		if p.BuyerPaymentMethod.IsPhoneWallet() || sellerMethod.IsPhoneWallet() {
			topic = messaging.TopicExchangeYankiValidationRequest
		}
		sagaID, err := saga.Start(ctx, tx, s.codec, messaging.WorkflowExchange, topic, p.BuyerPaymentMethod.ID, payload, now)
		if err != nil {
			return err
		}

		p.SellerPaymentMethod = &sellerMethod
		p.ActiveSagaID = &sagaID
		p.UpdatedAt = now
		if err := tx.SavePetition(ctx, p); err != nil {
			return err
		}
		seller.Reserved = seller.Reserved.Add(p.CoinAmount)
		seller.UpdatedAt = now
		if err := tx.SaveWallet(ctx, seller); err != nil {
			return err
		}
		ticket = Ticket{SagaID: sagaID, Step: topic, PaymentAmount: &amount}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.logger.Info("exchange requested", "saga_id", ticket.SagaID, "petition", id, "amount", ticket.PaymentAmount)
	return ticket, nil
}

func describe(p Petition) string {
	if p.ActiveSagaID != nil {
		return "already being exchanged"
	}
	return string(p.Status)
}
