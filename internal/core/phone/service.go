// Package phone is the phone-wallet service: wallet registry, the
// payment-method resolver and phone-to-phone payments.
package phone

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// BankGateway is the bank-account service as seen from phone payments. A
// repeated non-empty ref must return the first transfer's debit without
// booking another.
type BankGateway interface {
	CardTransfer(ctx context.Context, ref, fromCard, toCard string, amount decimal.Decimal) (domain.Transaction, error)
}

type Service struct {
	store  Store
	bank   BankGateway
	codec  messaging.Codec
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, bank BankGateway, codec messaging.Codec, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		bank:   bank,
		codec:  codec,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Service) WithClock(nowFn func() time.Time) {
	s.now = nowFn
}

func (s *Service) CreateWallet(ctx context.Context, phoneNumber, ownerName string) (Wallet, error) {
	if !phonePattern.MatchString(phoneNumber) {
		return Wallet{}, fmt.Errorf("%w: invalid phone number %q", domain.ErrInvalidArgument, phoneNumber)
	}
	now := s.now()
	w := Wallet{
		ID:          uuid.New(),
		PhoneNumber: phoneNumber,
		OwnerName:   ownerName,
		Status:      WalletPendingDebitCardAssociation,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateWallet(ctx, w)
	})
	if err != nil {
		return Wallet{}, err
	}
	s.logger.Info("phone wallet created", "wallet", w.ID, "phone", phoneNumber)
	return w, nil
}

func (s *Service) GetWallet(ctx context.Context, id uuid.UUID) (Wallet, error) {
	return s.store.Wallet(ctx, id)
}

func (s *Service) WalletByPhone(ctx context.Context, phoneNumber string) (Wallet, error) {
	return s.store.WalletByPhone(ctx, phoneNumber)
}

func (s *Service) ListWallets(ctx context.Context) ([]Wallet, error) {
	return s.store.Wallets(ctx)
}

func (s *Service) UpdateOwner(ctx context.Context, id uuid.UUID, ownerName string) (Wallet, error) {
	var updated Wallet
	err := s.store.WithTx(ctx, func(tx Tx) error {
		w, err := tx.Wallet(ctx, id)
		if err != nil {
			return err
		}
		w.OwnerName = ownerName
		w.UpdatedAt = s.now()
		updated = w
		return tx.SaveWallet(ctx, w)
	})
	return updated, err
}

func (s *Service) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Wallet(ctx, id); err != nil {
			return err
		}
		return tx.DeleteWallet(ctx, id)
	})
}

func (s *Service) Movements(ctx context.Context, id uuid.UUID) ([]domain.Transaction, error) {
	if _, err := s.store.Wallet(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Movements(ctx, id)
}

func (s *Service) Saga(ctx context.Context, id uuid.UUID) (saga.Instance, error) {
	return s.store.Instance(ctx, id)
}

// Ticket acknowledges a request whose outcome arrives asynchronously.
type Ticket struct {
	SagaID uuid.UUID       `json:"saga_id"`
	Step   messaging.Topic `json:"step"`
}

// AssociateCard asks the bank-account service to confirm cardNumber. The
// wallet becomes ACTIVE when debitcard-association-success comes back.
func (s *Service) AssociateCard(ctx context.Context, walletID uuid.UUID, cardNumber string) (Ticket, error) {
	if _, err := domain.ValidateCardNumber(cardNumber); err != nil {
		return Ticket{}, err
	}
	cardNumber = domain.NormalizeCardNumber(cardNumber)
	assoc := messaging.DebitCardAssociation
	var ticket Ticket
	err := s.store.WithTx(ctx, func(tx Tx) error {
		w, err := tx.Wallet(ctx, walletID)
		if err != nil {
			return err
		}
		payload := messaging.AssociationPayload{WalletID: w.ID, Reference: cardNumber}
		sagaID, err := saga.Start(ctx, tx, s.codec, assoc.Workflow, assoc.Request, cardNumber, payload, s.now())
		if err != nil {
			return err
		}
		ticket = Ticket{SagaID: sagaID, Step: assoc.Request}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}
	s.logger.Info("card association requested", "saga_id", ticket.SagaID, "wallet", walletID)
	return ticket, nil
}

// Payment is the result of a phone-to-phone payment.
type Payment struct {
	FromPhone string             `json:"from_phone"`
	ToPhone   string             `json:"to_phone"`
	Amount    decimal.Decimal    `json:"amount"`
	Debit     domain.Transaction `json:"debit"`
}

// SendPayment pays amount from one phone wallet to another through their
// cards. The bank-account service books the transfer; this service keeps a
// movement on each wallet. Calling again with the same ref after a failure
// records the movements without a second transfer.
func (s *Service) SendPayment(ctx context.Context, ref, fromPhone, toPhone string, amount decimal.Decimal) (Payment, error) {
	if err := domain.RequirePositive("amount", amount); err != nil {
		return Payment{}, err
	}
	if fromPhone == toPhone {
		return Payment{}, fmt.Errorf("%w: cannot pay the same phone wallet", domain.ErrInvalidOperation)
	}
	fromCard, err := Resolve(ctx, s.store, fromPhone)
	if err != nil {
		return Payment{}, err
	}
	toCard, err := Resolve(ctx, s.store, toPhone)
	if err != nil {
		return Payment{}, err
	}

	debit, err := s.bank.CardTransfer(ctx, ref, fromCard, toCard, amount)
	if err != nil {
		return Payment{}, err
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		now := s.now()
		return s.recordMovements(ctx, tx, fromPhone, toPhone, amount, now)
	})
	if err != nil {
		s.logger.Error("payment booked but movements not recorded", "from", fromPhone, "to", toPhone, "error", err)
		return Payment{}, err
	}
	s.logger.Info("phone payment sent", "from", fromPhone, "to", toPhone, "amount", amount)
	return Payment{FromPhone: fromPhone, ToPhone: toPhone, Amount: amount, Debit: debit}, nil
}

// recordMovements appends a DEBIT for the paying phone and a CREDIT for the
// paid phone. An empty phone number skips that side.
func (s *Service) recordMovements(ctx context.Context, tx Tx, fromPhone, toPhone string, amount decimal.Decimal, now time.Time) error {
	sides := []struct {
		phone string
		typ   domain.TransactionType
	}{
		{fromPhone, domain.TransactionDebit},
		{toPhone, domain.TransactionCredit},
	}
	for _, side := range sides {
		if side.phone == "" {
			continue
		}
		w, err := tx.WalletByPhone(ctx, side.phone)
		if err != nil {
			return err
		}
		row := domain.NewTransaction(w.ID.String(), side.typ, amount, decimal.Zero, now)
		if err := tx.AppendMovement(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
