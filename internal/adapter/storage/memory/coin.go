package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/coin"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

// CoinStore implements coin.Store.
type CoinStore struct {
	*saga.MemoryJournal

	mu        sync.Mutex
	wallets   *table[uuid.UUID, coin.Wallet]
	petitions *table[uuid.UUID, coin.Petition]
	rates     *table[uuid.UUID, coin.ExchangeRate]
	ledger    *history[domain.Transaction]
}

func NewCoinStore() *CoinStore {
	return &CoinStore{
		MemoryJournal: saga.NewMemoryJournal(),
		wallets:       newTable[uuid.UUID, coin.Wallet](),
		petitions:     newTable[uuid.UUID, coin.Petition](),
		rates:         newTable[uuid.UUID, coin.ExchangeRate](),
		ledger:        newHistory[domain.Transaction](),
	}
}

func (s *CoinStore) WithTx(_ context.Context, fn func(tx coin.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &coinTx{
		MemoryTx:  s.MemoryJournal.Begin(),
		wallets:   stage(s.wallets),
		petitions: stage(s.petitions),
		rates:     stage(s.rates),
		ledger:    &stagedHistory[domain.Transaction]{base: s.ledger},
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.wallets.commit()
	tx.petitions.commit()
	tx.rates.commit()
	tx.ledger.commit()
	tx.MemoryTx.Commit()
	return nil
}

func (s *CoinStore) Wallet(_ context.Context, id uuid.UUID) (coin.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets.get(id)
	if !ok {
		return coin.Wallet{}, coinWalletNotFound(id)
	}
	return w, nil
}

func (s *CoinStore) Wallets(context.Context) ([]coin.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets.list(func(a, b coin.Wallet) bool { return a.CreatedAt.Before(b.CreatedAt) }), nil
}

func (s *CoinStore) Petition(_ context.Context, id uuid.UUID) (coin.Petition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.petitions.get(id)
	if !ok {
		return coin.Petition{}, petitionNotFound(id)
	}
	return p, nil
}

func (s *CoinStore) Petitions(_ context.Context, status coin.PetitionStatus) ([]coin.Petition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.petitions.list(func(a, b coin.Petition) bool { return a.CreatedAt.Before(b.CreatedAt) })
	if status == "" {
		return all, nil
	}
	out := make([]coin.Petition, 0, len(all))
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *CoinStore) Rates(context.Context) ([]coin.ExchangeRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rates.list(rateOrder), nil
}

func (s *CoinStore) Transactions(_ context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.of(walletID.String()), nil
}

type coinTx struct {
	*saga.MemoryTx
	wallets   *staged[uuid.UUID, coin.Wallet]
	petitions *staged[uuid.UUID, coin.Petition]
	rates     *staged[uuid.UUID, coin.ExchangeRate]
	ledger    *stagedHistory[domain.Transaction]
}

func (t *coinTx) Wallet(_ context.Context, id uuid.UUID) (coin.Wallet, error) {
	w, ok := t.wallets.get(id)
	if !ok {
		return coin.Wallet{}, coinWalletNotFound(id)
	}
	return w, nil
}

func (t *coinTx) CreateWallet(_ context.Context, w coin.Wallet) error {
	t.wallets.put(w.ID, w)
	return nil
}

func (t *coinTx) SaveWallet(_ context.Context, w coin.Wallet) error {
	if _, ok := t.wallets.get(w.ID); !ok {
		return coinWalletNotFound(w.ID)
	}
	t.wallets.put(w.ID, w)
	return nil
}

func (t *coinTx) DeleteWallet(_ context.Context, id uuid.UUID) error {
	if _, ok := t.wallets.get(id); !ok {
		return coinWalletNotFound(id)
	}
	t.wallets.del(id)
	return nil
}

func (t *coinTx) Petition(_ context.Context, id uuid.UUID) (coin.Petition, error) {
	p, ok := t.petitions.get(id)
	if !ok {
		return coin.Petition{}, petitionNotFound(id)
	}
	return p, nil
}

func (t *coinTx) CreatePetition(_ context.Context, p coin.Petition) error {
	t.petitions.put(p.ID, p)
	return nil
}

func (t *coinTx) SavePetition(_ context.Context, p coin.Petition) error {
	if _, ok := t.petitions.get(p.ID); !ok {
		return petitionNotFound(p.ID)
	}
	t.petitions.put(p.ID, p)
	return nil
}

func (t *coinTx) CreateRate(_ context.Context, r coin.ExchangeRate) error {
	t.rates.put(r.ID, r)
	return nil
}

func (t *coinTx) CurrentRate(_ context.Context, at time.Time) (coin.ExchangeRate, error) {
	var (
		best  coin.ExchangeRate
		found bool
	)
	t.rates.each(func(_ uuid.UUID, r coin.ExchangeRate) {
		if r.EffectiveFrom.After(at) {
			return
		}
		if !found || rateOrder(best, r) {
			best, found = r, true
		}
	})
	if !found {
		return coin.ExchangeRate{}, fmt.Errorf("%w: no exchange rate effective at %s", domain.ErrNotFound, at.Format(time.RFC3339))
	}
	return best, nil
}

func (t *coinTx) AppendTransaction(_ context.Context, row domain.Transaction) error {
	t.ledger.append(row.Reference, row)
	return nil
}

// rateOrder sorts rates oldest first by effective time, then creation time.
func rateOrder(a, b coin.ExchangeRate) bool {
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return a.EffectiveFrom.Before(b.EffectiveFrom)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func coinWalletNotFound(id uuid.UUID) error {
	return fmt.Errorf("%w: coin wallet %s", domain.ErrNotFound, id)
}

func petitionNotFound(id uuid.UUID) error {
	return fmt.Errorf("%w: petition %s", domain.ErrNotFound, id)
}
