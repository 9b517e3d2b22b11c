// Package bank is the bank-account ledger: accounts, debit cards and the
// mutation engine that keeps balances, movement counters and the commission
// latch consistent.
package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

// CustomerDirectory answers what kind of customer owns an account.
type CustomerDirectory interface {
	CustomerType(ctx context.Context, customerID string) (domain.CustomerType, error)
}

type Engine struct {
	store     Store
	customers CustomerDirectory
	logger    *slog.Logger
	now       func() time.Time
}

func NewEngine(store Store, customers CustomerDirectory, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		customers: customers,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (e *Engine) WithClock(nowFn func() time.Time) {
	e.now = nowFn
}

type NewAccount struct {
	CustomerID          string
	Kind                Kind
	Currency            domain.Currency
	MaxFeeFreeMovements int
	CommissionFee       decimal.Decimal
	Savings             *SavingsTerms
	FixedTerm           *FixedTermTerms
	Checking            *CheckingTerms
}

func (e *Engine) CreateAccount(ctx context.Context, req NewAccount) (Account, error) {
	if req.CustomerID == "" {
		return Account{}, fmt.Errorf("%w: customer id is required", domain.ErrInvalidArgument)
	}
	now := e.now()
	acc := Account{
		ID:                  uuid.New(),
		CustomerID:          req.CustomerID,
		Kind:                req.Kind,
		Currency:            req.Currency,
		Balance:             decimal.Zero,
		MaxFeeFreeMovements: req.MaxFeeFreeMovements,
		CommissionFee:       req.CommissionFee,
		Savings:             req.Savings,
		FixedTerm:           req.FixedTerm,
		Checking:            req.Checking,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := acc.validate(); err != nil {
		return Account{}, err
	}
	acc.syncLatch()

	customerType, err := e.customers.CustomerType(ctx, req.CustomerID)
	if err != nil {
		return Account{}, err
	}
	rule, ok := customerRules[customerType]
	if !ok {
		return Account{}, fmt.Errorf("%w: unknown customer type %q", domain.ErrInvalidOperation, customerType)
	}
	if err := rule(req.Kind); err != nil {
		return Account{}, err
	}

	acc.Number, err = domain.GenerateAccountNumber()
	if err != nil {
		return Account{}, err
	}
	err = e.store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateAccount(ctx, acc)
	})
	if err != nil {
		return Account{}, err
	}
	e.logger.Info("account created", "account", acc.Number, "kind", acc.Kind, "customer", acc.CustomerID)
	return acc, nil
}

func (e *Engine) GetAccount(ctx context.Context, number string) (Account, error) {
	return e.store.Account(ctx, number)
}

func (e *Engine) ListAccounts(ctx context.Context) ([]Account, error) {
	return e.store.Accounts(ctx)
}

// TermsUpdate changes the fee schedule or kind terms of an account. Nil
// fields are left alone. Lowering the quota to or below the current count
// turns the commission latch on; nothing here turns it off.
type TermsUpdate struct {
	MaxFeeFreeMovements *int
	CommissionFee       *decimal.Decimal
	Savings             *SavingsTerms
	FixedTerm           *FixedTermTerms
	Checking            *CheckingTerms
}

func (e *Engine) UpdateAccountTerms(ctx context.Context, number string, upd TermsUpdate) (Account, error) {
	var updated Account
	err := e.store.WithTx(ctx, func(tx Tx) error {
		acc, err := tx.Account(ctx, number)
		if err != nil {
			return err
		}
		if upd.MaxFeeFreeMovements != nil {
			acc.MaxFeeFreeMovements = *upd.MaxFeeFreeMovements
		}
		if upd.CommissionFee != nil {
			acc.CommissionFee = *upd.CommissionFee
		}
		if upd.Savings != nil {
			acc.Savings = upd.Savings
		}
		if upd.FixedTerm != nil {
			acc.FixedTerm = upd.FixedTerm
		}
		if upd.Checking != nil {
			acc.Checking = upd.Checking
		}
		if err := acc.validate(); err != nil {
			return err
		}
		acc.syncLatch()
		acc.UpdatedAt = e.now()
		updated = acc
		return tx.SaveAccount(ctx, acc)
	})
	return updated, err
}

// DeleteAccount removes an account with a zero balance.
func (e *Engine) DeleteAccount(ctx context.Context, number string) error {
	return e.store.WithTx(ctx, func(tx Tx) error {
		acc, err := tx.Account(ctx, number)
		if err != nil {
			return err
		}
		if !acc.Balance.IsZero() {
			return fmt.Errorf("%w: account %s still holds %s", domain.ErrInvalidOperation, number, acc.Balance)
		}
		return tx.DeleteAccount(ctx, number)
	})
}

func (e *Engine) Transactions(ctx context.Context, number string) ([]domain.Transaction, error) {
	if _, err := e.store.Account(ctx, number); err != nil {
		return nil, err
	}
	return e.store.Transactions(ctx, number)
}

func (e *Engine) Saga(ctx context.Context, id uuid.UUID) (saga.Instance, error) {
	return e.store.Instance(ctx, id)
}

func (e *Engine) Deposit(ctx context.Context, number string, amount domain.Money) (domain.Transaction, error) {
	if err := amount.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	var result domain.Transaction
	err := e.store.WithTx(ctx, func(tx Tx) error {
		acc, err := lockForCurrency(ctx, tx, number, amount.Currency)
		if err != nil {
			return err
		}
		fee, err := acc.deposit(amount.Amount)
		if err != nil {
			return err
		}
		now := e.now()
		acc.UpdatedAt = now
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		result = domain.NewTransaction(acc.Number, domain.TransactionDeposit, amount.Amount, fee, now)
		return tx.AppendTransaction(ctx, result)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	e.logger.Info("deposit booked", "account", number, "amount", amount.Amount, "fee", result.Fee)
	return result, nil
}

func (e *Engine) Withdraw(ctx context.Context, number string, amount domain.Money) (domain.Transaction, error) {
	if err := amount.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	var result domain.Transaction
	err := e.store.WithTx(ctx, func(tx Tx) error {
		acc, err := lockForCurrency(ctx, tx, number, amount.Currency)
		if err != nil {
			return err
		}
		now := e.now()
		fee, err := acc.withdraw(amount.Amount, now)
		if err != nil {
			return err
		}
		acc.UpdatedAt = now
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		result = domain.NewTransaction(acc.Number, domain.TransactionWithdrawal, amount.Amount, fee, now)
		return tx.AppendTransaction(ctx, result)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	e.logger.Info("withdrawal booked", "account", number, "amount", amount.Amount, "fee", result.Fee)
	return result, nil
}

// Transfer moves amount from sender to receiver and returns the DEBIT row.
func (e *Engine) Transfer(ctx context.Context, senderNumber, receiverNumber string, amount decimal.Decimal) (domain.Transaction, error) {
	if err := domain.RequirePositive("amount", amount); err != nil {
		return domain.Transaction{}, err
	}
	var debit domain.Transaction
	err := e.store.WithTx(ctx, func(tx Tx) error {
		var err error
		debit, err = e.transfer(ctx, tx, senderNumber, receiverNumber, amount)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	e.logger.Info("transfer booked", "from", senderNumber, "to", receiverNumber, "amount", amount, "fee", debit.Fee)
	return debit, nil
}

type Direction string

const (
	Increase Direction = "INCREASE"
	Decrease Direction = "DECREASE"
)

// Adjustment is a raw balance change requested by another product. When
// CreditID is set the change is a credit payment and is logged against it.
type Adjustment struct {
	Direction Direction
	Amount    decimal.Decimal
	CreditID  string
}

// AdjustBalance changes the balance without counting a movement or charging
// a fee.
func (e *Engine) AdjustBalance(ctx context.Context, number string, adj Adjustment) (Account, error) {
	if err := domain.RequirePositive("amount", adj.Amount); err != nil {
		return Account{}, err
	}
	var updated Account
	err := e.store.WithTx(ctx, func(tx Tx) error {
		acc, err := tx.Account(ctx, number)
		if err != nil {
			return err
		}
		switch adj.Direction {
		case Increase:
			acc.Balance = acc.Balance.Add(adj.Amount)
		case Decrease:
			if err := acc.debitDirect(adj.Amount); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidArgument, adj.Direction)
		}
		now := e.now()
		acc.UpdatedAt = now
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		updated = acc
		if adj.CreditID == "" {
			return nil
		}
		row := domain.NewTransaction(acc.Number, domain.TransactionCreditPayment, adj.Amount, decimal.Zero, now)
		creditID := adj.CreditID
		row.RelatedCreditID = &creditID
		return tx.AppendTransaction(ctx, row)
	})
	if err != nil {
		return Account{}, err
	}
	e.logger.Info("balance adjusted", "account", number, "direction", adj.Direction, "amount", adj.Amount)
	return updated, nil
}

// ResetMonthlyMovements zeroes every account's movement counter. The
// commission latch stays as it is.
func (e *Engine) ResetMonthlyMovements(ctx context.Context) (int64, error) {
	var n int64
	err := e.store.WithTx(ctx, func(tx Tx) error {
		var err error
		n, err = tx.ResetMovements(ctx)
		return err
	})
	return n, err
}

// transfer runs inside tx. Both rows are locked in account-number order.
func (e *Engine) transfer(ctx context.Context, tx Tx, senderNumber, receiverNumber string, amount decimal.Decimal) (domain.Transaction, error) {
	if senderNumber == receiverNumber {
		return domain.Transaction{}, fmt.Errorf("%w: cannot transfer to the same account", domain.ErrInvalidOperation)
	}
	locked, err := lockAccounts(ctx, tx, senderNumber, receiverNumber)
	if err != nil {
		return domain.Transaction{}, err
	}
	sender, receiver := locked[senderNumber], locked[receiverNumber]
	if err := checkTransferable(sender, receiver); err != nil {
		return domain.Transaction{}, err
	}
	now := e.now()
	fee, err := sender.withdraw(amount, now)
	if err != nil {
		return domain.Transaction{}, err
	}
	return e.bookTransfer(ctx, tx, sender, receiver, amount, fee, now)
}

// bookTransfer credits receiver and persists both sides of a transfer whose
// sender has already been debited.
func (e *Engine) bookTransfer(ctx context.Context, tx Tx, sender, receiver Account, amount, fee decimal.Decimal, now time.Time) (domain.Transaction, error) {
	receiver.Balance = receiver.Balance.Add(amount)
	sender.UpdatedAt = now
	receiver.UpdatedAt = now
	if err := tx.SaveAccount(ctx, sender); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.SaveAccount(ctx, receiver); err != nil {
		return domain.Transaction{}, err
	}
	debit := domain.NewTransaction(sender.Number, domain.TransactionDebit, amount, fee, now)
	credit := domain.NewTransaction(receiver.Number, domain.TransactionCredit, amount, decimal.Zero, now)
	if err := tx.AppendTransaction(ctx, debit); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.AppendTransaction(ctx, credit); err != nil {
		return domain.Transaction{}, err
	}
	return debit, nil
}

func lockAccounts(ctx context.Context, tx Tx, numbers ...string) (map[string]Account, error) {
	ordered := append([]string(nil), numbers...)
	sort.Strings(ordered)
	locked := make(map[string]Account, len(ordered))
	for _, number := range ordered {
		acc, err := tx.Account(ctx, number)
		if err != nil {
			return nil, err
		}
		locked[number] = acc
	}
	return locked, nil
}

func lockForCurrency(ctx context.Context, tx Tx, number string, currency domain.Currency) (Account, error) {
	acc, err := tx.Account(ctx, number)
	if err != nil {
		return Account{}, err
	}
	if acc.Currency != currency {
		return Account{}, fmt.Errorf("%w: account %s is in %s, not %s",
			domain.ErrInvalidArgument, number, acc.Currency, currency)
	}
	return acc, nil
}

// skippable reports whether a funding candidate simply does not qualify.
func skippable(err error) bool {
	return errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrMovementLimitReached) ||
		errors.Is(err, domain.ErrWithdrawalNotAllowed) ||
		errors.Is(err, domain.ErrInvalidOperation)
}
