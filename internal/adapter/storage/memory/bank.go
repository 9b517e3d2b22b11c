package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

// BankStore implements bank.Store. The embedded journal doubles as the
// relay's outbox.
type BankStore struct {
	*saga.MemoryJournal

	mu       sync.Mutex
	accounts *table[string, bank.Account]
	cards    *table[string, bank.DebitCard]
	ledger   *history[domain.Transaction]
}

func NewBankStore() *BankStore {
	return &BankStore{
		MemoryJournal: saga.NewMemoryJournal(),
		accounts:      newTable[string, bank.Account](),
		cards:         newTable[string, bank.DebitCard](),
		ledger:        newHistory[domain.Transaction](),
	}
}

func (s *BankStore) WithTx(_ context.Context, fn func(tx bank.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &bankTx{
		MemoryTx: s.MemoryJournal.Begin(),
		accounts: stage(s.accounts),
		cards:    stage(s.cards),
		ledger:   &stagedHistory[domain.Transaction]{base: s.ledger},
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.accounts.commit()
	tx.cards.commit()
	tx.ledger.commit()
	tx.MemoryTx.Commit()
	return nil
}

func (s *BankStore) Account(_ context.Context, number string) (bank.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts.get(number)
	if !ok {
		return bank.Account{}, accountNotFound(number)
	}
	return acc, nil
}

func (s *BankStore) Accounts(context.Context) ([]bank.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts.list(func(a, b bank.Account) bool {
		return a.CreatedAt.Before(b.CreatedAt) || (a.CreatedAt.Equal(b.CreatedAt) && a.Number < b.Number)
	}), nil
}

func (s *BankStore) Card(_ context.Context, number string) (bank.DebitCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards.get(number)
	if !ok {
		return bank.DebitCard{}, cardNotFound(number)
	}
	return card, nil
}

func (s *BankStore) Transactions(_ context.Context, number string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.of(number), nil
}

type bankTx struct {
	*saga.MemoryTx
	accounts *staged[string, bank.Account]
	cards    *staged[string, bank.DebitCard]
	ledger   *stagedHistory[domain.Transaction]
}

func (t *bankTx) Account(_ context.Context, number string) (bank.Account, error) {
	acc, ok := t.accounts.get(number)
	if !ok {
		return bank.Account{}, accountNotFound(number)
	}
	return acc, nil
}

func (t *bankTx) CreateAccount(_ context.Context, a bank.Account) error {
	if _, exists := t.accounts.get(a.Number); exists {
		return fmt.Errorf("%w: account %s already exists", domain.ErrInvalidOperation, a.Number)
	}
	t.accounts.put(a.Number, a)
	return nil
}

func (t *bankTx) SaveAccount(_ context.Context, a bank.Account) error {
	if _, ok := t.accounts.get(a.Number); !ok {
		return accountNotFound(a.Number)
	}
	t.accounts.put(a.Number, a)
	return nil
}

func (t *bankTx) DeleteAccount(_ context.Context, number string) error {
	if _, ok := t.accounts.get(number); !ok {
		return accountNotFound(number)
	}
	t.accounts.del(number)
	return nil
}

func (t *bankTx) ResetMovements(context.Context) (int64, error) {
	var touched []bank.Account
	t.accounts.each(func(_ string, a bank.Account) {
		if a.MovementsThisMonth != 0 {
			touched = append(touched, a)
		}
	})
	for _, a := range touched {
		a.MovementsThisMonth = 0
		t.accounts.put(a.Number, a)
	}
	return int64(len(touched)), nil
}

func (t *bankTx) Card(_ context.Context, number string) (bank.DebitCard, error) {
	card, ok := t.cards.get(number)
	if !ok {
		return bank.DebitCard{}, cardNotFound(number)
	}
	return card, nil
}

func (t *bankTx) CreateCard(_ context.Context, c bank.DebitCard) error {
	if _, exists := t.cards.get(c.Number); exists {
		return fmt.Errorf("%w: card already issued", domain.ErrInvalidOperation)
	}
	t.cards.put(c.Number, c)
	return nil
}

func (t *bankTx) DeleteCard(_ context.Context, number string) error {
	if _, ok := t.cards.get(number); !ok {
		return cardNotFound(number)
	}
	t.cards.del(number)
	return nil
}

func (t *bankTx) AppendTransaction(_ context.Context, row domain.Transaction) error {
	t.ledger.append(row.Reference, row)
	return nil
}

func accountNotFound(number string) error {
	return fmt.Errorf("%w: account %s", domain.ErrNotFound, number)
}

func cardNotFound(number string) error {
	return fmt.Errorf("%w: card ending %s", domain.ErrNotFound, lastFour(number))
}

func lastFour(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}
