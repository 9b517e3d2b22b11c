package bank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// DebitCard draws on its main account first and then on the linked
// accounts in the order they were stored.
type DebitCard struct {
	Number               string    `json:"card_number"`
	MainAccountNumber    string    `json:"main_account_number"`
	LinkedAccountNumbers []string  `json:"linked_account_numbers"`
	CreatedAt            time.Time `json:"created_at"`
}

// FundingOrder lists the accounts a card may draw on, main account first.
func (c DebitCard) FundingOrder() []string {
	order := []string{c.MainAccountNumber}
	for _, n := range c.LinkedAccountNumbers {
		if n != c.MainAccountNumber {
			order = append(order, n)
		}
	}
	return order
}

func (e *Engine) IssueCard(ctx context.Context, mainAccount string, linked []string) (DebitCard, error) {
	if mainAccount == "" {
		return DebitCard{}, fmt.Errorf("%w: main account number is required", domain.ErrInvalidArgument)
	}
	number, err := domain.GenerateCardNumber()
	if err != nil {
		return DebitCard{}, err
	}
	card := DebitCard{
		Number:               number,
		MainAccountNumber:    mainAccount,
		LinkedAccountNumbers: append([]string(nil), linked...),
		CreatedAt:            e.now(),
	}
	err = e.store.WithTx(ctx, func(tx Tx) error {
		for _, n := range card.FundingOrder() {
			if _, err := tx.Account(ctx, n); err != nil {
				return err
			}
		}
		return tx.CreateCard(ctx, card)
	})
	if err != nil {
		return DebitCard{}, err
	}
	e.logger.Info("debit card issued", "main_account", mainAccount, "linked", len(card.LinkedAccountNumbers))
	return card, nil
}

func (e *Engine) GetCard(ctx context.Context, number string) (DebitCard, error) {
	return e.store.Card(ctx, domain.NormalizeCardNumber(number))
}

func (e *Engine) DeleteCard(ctx context.Context, number string) error {
	number = domain.NormalizeCardNumber(number)
	return e.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Card(ctx, number); err != nil {
			return err
		}
		return tx.DeleteCard(ctx, number)
	})
}

// WithdrawWithCard withdraws through the card's funding order and books a
// WITHDRAWAL on the first account that can pay amount plus its fee.
func (e *Engine) WithdrawWithCard(ctx context.Context, cardNumber string, amount decimal.Decimal) (domain.Transaction, error) {
	if err := domain.RequirePositive("amount", amount); err != nil {
		return domain.Transaction{}, err
	}
	var result domain.Transaction
	err := e.store.WithTx(ctx, func(tx Tx) error {
		card, err := tx.Card(ctx, domain.NormalizeCardNumber(cardNumber))
		if err != nil {
			return err
		}
		locked, err := lockLinked(ctx, tx, card.FundingOrder(), "")
		if err != nil {
			return err
		}
		now := e.now()
		acc, fee, err := fundFromCard(card, locked, func(a *Account) (decimal.Decimal, error) {
			return a.withdraw(amount, now)
		})
		if err != nil {
			return err
		}
		acc.UpdatedAt = now
		if err := tx.SaveAccount(ctx, acc); err != nil {
			return err
		}
		result = domain.NewTransaction(acc.Number, domain.TransactionWithdrawal, amount, fee, now)
		return tx.AppendTransaction(ctx, result)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	e.logger.Info("card withdrawal booked", "account", result.Reference, "amount", amount, "fee", result.Fee)
	return result, nil
}

// CardTransfer pays from one card to another. The paying side goes through
// the card's funding order, the paid side is the destination card's main
// account.
func (e *Engine) CardTransfer(ctx context.Context, fromCard, toCard string, amount decimal.Decimal) (domain.Transaction, error) {
	if err := domain.RequirePositive("amount", amount); err != nil {
		return domain.Transaction{}, err
	}
	var debit domain.Transaction
	err := e.store.WithTx(ctx, func(tx Tx) error {
		source, err := tx.Card(ctx, domain.NormalizeCardNumber(fromCard))
		if err != nil {
			return err
		}
		destination, err := tx.Card(ctx, domain.NormalizeCardNumber(toCard))
		if err != nil {
			return err
		}
		debit, err = e.transferFromCard(ctx, tx, source, destination.MainAccountNumber, amount)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	e.logger.Info("card transfer booked", "from", debit.Reference, "amount", amount, "fee", debit.Fee)
	return debit, nil
}

func (e *Engine) transferFromCard(ctx context.Context, tx Tx, card DebitCard, receiverNumber string, amount decimal.Decimal) (domain.Transaction, error) {
	locked, err := lockLinked(ctx, tx, card.FundingOrder(), receiverNumber)
	if err != nil {
		return domain.Transaction{}, err
	}
	receiver := locked[receiverNumber]
	delete(locked, receiverNumber)
	now := e.now()
	sender, fee, err := fundFromCard(card, locked, func(a *Account) (decimal.Decimal, error) {
		if err := checkTransferable(*a, receiver); err != nil {
			return decimal.Zero, err
		}
		return a.withdraw(amount, now)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return e.bookTransfer(ctx, tx, sender, receiver, amount, fee, now)
}

// lockLinked locks the card's accounts and the receiver, when there is one,
// in account-number order like lockAccounts. Linked accounts that no longer
// exist are left out; a missing receiver is an error.
func lockLinked(ctx context.Context, tx Tx, linked []string, receiverNumber string) (map[string]Account, error) {
	numbers := append([]string(nil), linked...)
	if receiverNumber != "" {
		numbers = append(numbers, receiverNumber)
	}
	sort.Strings(numbers)
	locked := make(map[string]Account, len(numbers))
	for _, number := range numbers {
		if _, ok := locked[number]; ok {
			continue
		}
		acc, err := tx.Account(ctx, number)
		if errors.Is(err, domain.ErrNotFound) && number != receiverNumber {
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[number] = acc
	}
	return locked, nil
}

// fundFromCard tries charge on a copy of each locked account in the card's
// funding order and returns the first copy it succeeds on, unsaved.
// Accounts that do not qualify, or are not in locked, are passed over.
func fundFromCard(card DebitCard, locked map[string]Account, charge func(*Account) (decimal.Decimal, error)) (Account, decimal.Decimal, error) {
	for _, number := range card.FundingOrder() {
		acc, ok := locked[number]
		if !ok {
			continue
		}
		candidate := acc
		fee, err := charge(&candidate)
		if err == nil {
			return candidate, fee, nil
		}
		if !skippable(err) {
			return Account{}, decimal.Zero, err
		}
	}
	return Account{}, decimal.Zero, fmt.Errorf("%w: no account linked to card %s can cover the charge",
		domain.ErrInsufficientFunds, maskCard(card.Number))
}

func maskCard(number string) string {
	if len(number) <= 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}
