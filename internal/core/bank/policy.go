package bank

import (
	"fmt"
	"time"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// kindPolicy holds everything that differs between account kinds.
type kindPolicy struct {
	sendsTransfers    bool
	receivesTransfers bool
	withdrawalGate    func(a Account, now time.Time) error
	movementGate      func(a Account) error
	validateTerms     func(a Account) error
}

var kindPolicies = map[Kind]kindPolicy{
	KindSavings: {
		sendsTransfers:    true,
		receivesTransfers: true,
		withdrawalGate:    anyTime,
		movementGate:      savingsMovementLimit,
		validateTerms:     savingsTerms,
	},
	KindChecking: {
		sendsTransfers:    true,
		receivesTransfers: true,
		withdrawalGate:    anyTime,
		movementGate:      unlimitedMovements,
		validateTerms:     checkingTerms,
	},
	KindFixedTerm: {
		sendsTransfers:    false,
		receivesTransfers: false,
		withdrawalGate:    fixedTermLock,
		movementGate:      unlimitedMovements,
		validateTerms:     fixedTermTerms,
	},
}

func anyTime(Account, time.Time) error { return nil }

func unlimitedMovements(Account) error { return nil }

func savingsMovementLimit(a Account) error {
	if a.MovementsThisMonth >= a.Savings.MonthlyMovementLimit {
		return fmt.Errorf("%w: account %s used %d of %d movements",
			domain.ErrMovementLimitReached, a.Number, a.MovementsThisMonth, a.Savings.MonthlyMovementLimit)
	}
	return nil
}

func fixedTermLock(a Account, now time.Time) error {
	if now.Before(a.FixedTerm.AllowedWithdrawalDate) {
		return fmt.Errorf("%w: account %s is locked until %s",
			domain.ErrWithdrawalNotAllowed, a.Number, a.FixedTerm.AllowedWithdrawalDate.Format(time.DateOnly))
	}
	return nil
}

func savingsTerms(a Account) error {
	if a.Savings == nil || a.FixedTerm != nil || a.Checking != nil {
		return fmt.Errorf("%w: SAVINGS accounts take savings terms only", domain.ErrInvalidArgument)
	}
	if a.Savings.MonthlyMovementLimit <= 0 {
		return fmt.Errorf("%w: monthly movement limit must be positive", domain.ErrInvalidArgument)
	}
	return nil
}

func checkingTerms(a Account) error {
	if a.Checking == nil || a.Savings != nil || a.FixedTerm != nil {
		return fmt.Errorf("%w: CHECKING accounts take checking terms only", domain.ErrInvalidArgument)
	}
	if a.Checking.MaintenanceFee.IsNegative() {
		return fmt.Errorf("%w: maintenance fee cannot be negative", domain.ErrInvalidArgument)
	}
	return nil
}

func fixedTermTerms(a Account) error {
	if a.FixedTerm == nil || a.Savings != nil || a.Checking != nil {
		return fmt.Errorf("%w: FIXED_TERM accounts take fixed-term terms only", domain.ErrInvalidArgument)
	}
	if a.FixedTerm.AllowedWithdrawalDate.IsZero() {
		return fmt.Errorf("%w: allowed withdrawal date is required", domain.ErrInvalidArgument)
	}
	return nil
}

func checkTransferable(sender, receiver Account) error {
	if !sender.policy().sendsTransfers {
		return fmt.Errorf("%w: %s account %s cannot send transfers", domain.ErrInvalidOperation, sender.Kind, sender.Number)
	}
	if !receiver.policy().receivesTransfers {
		return fmt.Errorf("%w: %s account %s cannot receive transfers", domain.ErrInvalidOperation, receiver.Kind, receiver.Number)
	}
	if sender.Number == receiver.Number {
		return fmt.Errorf("%w: cannot transfer to the same account", domain.ErrInvalidOperation)
	}
	return nil
}

// customerRules says which account kinds each customer type may open.
var customerRules = map[domain.CustomerType]func(Kind) error{
	domain.CustomerPersonal: func(Kind) error { return nil },
	domain.CustomerBusiness: func(k Kind) error {
		if k != KindChecking {
			return fmt.Errorf("%w: business customers may only open CHECKING accounts", domain.ErrInvalidOperation)
		}
		return nil
	},
}
