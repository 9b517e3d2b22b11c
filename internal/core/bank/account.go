package bank

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

type Kind string

const (
	KindSavings   Kind = "SAVINGS"
	KindChecking  Kind = "CHECKING"
	KindFixedTerm Kind = "FIXED_TERM"
)

type SavingsTerms struct {
	MonthlyMovementLimit int `json:"monthly_movement_limit"`
}

type FixedTermTerms struct {
	AllowedWithdrawalDate time.Time `json:"allowed_withdrawal_date"`
}

type CheckingTerms struct {
	Holders        []string        `json:"holders"`
	MaintenanceFee decimal.Decimal `json:"maintenance_fee"`
}

// Account is a bank account. Exactly one of Savings, FixedTerm or Checking
// is set, matching Kind.
type Account struct {
	ID                  uuid.UUID       `json:"id"`
	Number              string          `json:"account_number"`
	CustomerID          string          `json:"customer_id"`
	Kind                Kind            `json:"kind"`
	Currency            domain.Currency `json:"currency"`
	Balance             decimal.Decimal `json:"balance"`
	MovementsThisMonth  int             `json:"movements_this_month"`
	MaxFeeFreeMovements int             `json:"max_fee_free_movements"`
	CommissionFeeActive bool            `json:"commission_fee_active"`
	CommissionFee       decimal.Decimal `json:"commission_fee"`
	Savings             *SavingsTerms   `json:"savings,omitempty"`
	FixedTerm           *FixedTermTerms `json:"fixed_term,omitempty"`
	Checking            *CheckingTerms  `json:"checking,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (a Account) activeFee() decimal.Decimal {
	if a.CommissionFeeActive {
		return a.CommissionFee
	}
	return decimal.Zero
}

func (a Account) policy() kindPolicy {
	return kindPolicies[a.Kind]
}

// syncLatch turns the commission fee on once the month's movements have
// reached the fee-free quota. A quota of 0 charges from the first movement.
// The latch is one-way.
func (a *Account) syncLatch() {
	if a.MovementsThisMonth >= a.MaxFeeFreeMovements {
		a.CommissionFeeActive = true
	}
}

// registerMovement counts one movement and returns the fee it carries. The
// fee is the one active before the count moves, so the movement that
// reaches MaxFeeFreeMovements is still free and flips the latch.
func (a *Account) registerMovement() (decimal.Decimal, error) {
	if err := a.policy().movementGate(*a); err != nil {
		return decimal.Zero, err
	}
	fee := a.activeFee()
	a.MovementsThisMonth++
	a.syncLatch()
	return fee, nil
}

// withdraw applies the withdraw path: kind gate, movement, then amount plus
// fee off the balance. On error the receiver must be discarded.
func (a *Account) withdraw(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if err := a.policy().withdrawalGate(*a, now); err != nil {
		return decimal.Zero, err
	}
	fee, err := a.registerMovement()
	if err != nil {
		return decimal.Zero, err
	}
	total := amount.Add(fee)
	if a.Balance.LessThan(total) {
		return decimal.Zero, fmt.Errorf("%w: account %s holds %s, needs %s",
			domain.ErrInsufficientFunds, a.Number, a.Balance, total)
	}
	a.Balance = a.Balance.Sub(total)
	return fee, nil
}

// deposit applies the deposit path: movement, then amount minus fee onto
// the balance.
func (a *Account) deposit(amount decimal.Decimal) (decimal.Decimal, error) {
	fee, err := a.registerMovement()
	if err != nil {
		return decimal.Zero, err
	}
	if fee.GreaterThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: commission fee %s exceeds deposit %s",
			domain.ErrInvalidArgument, fee, amount)
	}
	a.Balance = a.Balance.Add(amount.Sub(fee))
	return fee, nil
}

// debitDirect takes amount off the balance with no movement and no fee.
func (a *Account) debitDirect(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return fmt.Errorf("%w: account %s holds %s, needs %s",
			domain.ErrInsufficientFunds, a.Number, a.Balance, amount)
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

func (a Account) validate() error {
	p, ok := kindPolicies[a.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown account kind %q", domain.ErrInvalidArgument, a.Kind)
	}
	if !a.Currency.Valid() {
		return fmt.Errorf("%w: unsupported currency %q", domain.ErrInvalidArgument, a.Currency)
	}
	if a.MaxFeeFreeMovements < 0 {
		return fmt.Errorf("%w: max fee-free movements cannot be negative", domain.ErrInvalidArgument)
	}
	if a.CommissionFee.IsNegative() {
		return fmt.Errorf("%w: commission fee cannot be negative", domain.ErrInvalidArgument)
	}
	return p.validateTerms(a)
}
