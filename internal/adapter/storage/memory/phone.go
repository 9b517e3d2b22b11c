package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/phone"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

// PhoneStore implements phone.Store.
type PhoneStore struct {
	*saga.MemoryJournal

	mu        sync.Mutex
	wallets   *table[uuid.UUID, phone.Wallet]
	movements *history[domain.Transaction]
}

func NewPhoneStore() *PhoneStore {
	return &PhoneStore{
		MemoryJournal: saga.NewMemoryJournal(),
		wallets:       newTable[uuid.UUID, phone.Wallet](),
		movements:     newHistory[domain.Transaction](),
	}
}

func (s *PhoneStore) WithTx(_ context.Context, fn func(tx phone.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &phoneTx{
		MemoryTx:  s.MemoryJournal.Begin(),
		wallets:   stage(s.wallets),
		movements: &stagedHistory[domain.Transaction]{base: s.movements},
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.wallets.commit()
	tx.movements.commit()
	tx.MemoryTx.Commit()
	return nil
}

func (s *PhoneStore) Wallet(_ context.Context, id uuid.UUID) (phone.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets.get(id)
	if !ok {
		return phone.Wallet{}, phoneWalletNotFound(id.String())
	}
	return w, nil
}

func (s *PhoneStore) WalletByPhone(_ context.Context, phoneNumber string) (phone.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets.rows {
		if w.PhoneNumber == phoneNumber {
			return w, nil
		}
	}
	return phone.Wallet{}, phoneWalletNotFound(phoneNumber)
}

func (s *PhoneStore) Wallets(context.Context) ([]phone.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets.list(func(a, b phone.Wallet) bool { return a.CreatedAt.Before(b.CreatedAt) }), nil
}

func (s *PhoneStore) Movements(_ context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.movements.of(walletID.String()), nil
}

type phoneTx struct {
	*saga.MemoryTx
	wallets   *staged[uuid.UUID, phone.Wallet]
	movements *stagedHistory[domain.Transaction]
}

func (t *phoneTx) Wallet(_ context.Context, id uuid.UUID) (phone.Wallet, error) {
	w, ok := t.wallets.get(id)
	if !ok {
		return phone.Wallet{}, phoneWalletNotFound(id.String())
	}
	return w, nil
}

func (t *phoneTx) WalletByPhone(_ context.Context, phoneNumber string) (phone.Wallet, error) {
	var (
		found phone.Wallet
		ok    bool
	)
	t.wallets.each(func(_ uuid.UUID, w phone.Wallet) {
		if w.PhoneNumber == phoneNumber {
			found, ok = w, true
		}
	})
	if !ok {
		return phone.Wallet{}, phoneWalletNotFound(phoneNumber)
	}
	return found, nil
}

func (t *phoneTx) CreateWallet(ctx context.Context, w phone.Wallet) error {
	if _, err := t.WalletByPhone(ctx, w.PhoneNumber); err == nil {
		return fmt.Errorf("%w: phone %s already has a wallet", domain.ErrInvalidOperation, w.PhoneNumber)
	}
	t.wallets.put(w.ID, w)
	return nil
}

func (t *phoneTx) SaveWallet(_ context.Context, w phone.Wallet) error {
	if _, ok := t.wallets.get(w.ID); !ok {
		return phoneWalletNotFound(w.ID.String())
	}
	t.wallets.put(w.ID, w)
	return nil
}

func (t *phoneTx) DeleteWallet(_ context.Context, id uuid.UUID) error {
	if _, ok := t.wallets.get(id); !ok {
		return phoneWalletNotFound(id.String())
	}
	t.wallets.del(id)
	return nil
}

func (t *phoneTx) AppendMovement(_ context.Context, row domain.Transaction) error {
	t.movements.append(row.Reference, row)
	return nil
}

func phoneWalletNotFound(ref string) error {
	return fmt.Errorf("%w: phone wallet %s", domain.ErrNotFound, ref)
}
