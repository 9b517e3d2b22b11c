package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	PEN Currency = "PEN"
	USD Currency = "USD"
	EUR Currency = "EUR"
)

var currencies = map[Currency]bool{PEN: true, USD: true, EUR: true}

// Valid reports whether the currency is one the platform books in.
func (c Currency) Valid() bool {
	return currencies[c]
}

// Money pairs an amount with the currency it is expressed in.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// Validate rejects non-positive amounts and unknown currencies.
func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidArgument, m.Amount)
	}
	if !m.Currency.Valid() {
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidArgument, m.Currency)
	}
	return nil
}

// RoundHalfUp2 rounds to two decimal places, halves away from zero.
// Every amount on the platform is non-negative, so this is half-up.
func RoundHalfUp2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RequirePositive returns ErrInvalidArgument unless d > 0.
func RequirePositive(name string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidArgument, name, d)
	}
	return nil
}
