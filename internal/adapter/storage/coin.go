package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/gosettle/internal/core/coin"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

const coinService = "coin"

// CoinStore implements coin.Store.
type CoinStore struct {
	Db *pgxpool.Pool
}

func NewCoinStore(db *pgxpool.Pool) *CoinStore {
	return &CoinStore{Db: db}
}

func (s *CoinStore) Outbox() *Outbox {
	return NewOutbox(s.Db, coinService)
}

func (s *CoinStore) WithTx(ctx context.Context, fn func(tx coin.Tx) error) error {
	return runTx(ctx, s.Db, func(tx pgx.Tx) error {
		return fn(&coinTx{journal: journal{tx: tx, service: coinService}})
	})
}

func (s *CoinStore) Wallet(ctx context.Context, id uuid.UUID) (coin.Wallet, error) {
	return scanCoinWallet(s.Db.QueryRow(ctx, selectCoinWallet+` WHERE id = $1`, id), id)
}

func (s *CoinStore) Wallets(ctx context.Context) ([]coin.Wallet, error) {
	rows, err := s.Db.Query(ctx, selectCoinWallet+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list coin wallets: %w", err)
	}
	defer rows.Close()

	wallets := []coin.Wallet{}
	for rows.Next() {
		w, err := scanCoinWallet(rows, uuid.Nil)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (s *CoinStore) Petition(ctx context.Context, id uuid.UUID) (coin.Petition, error) {
	return scanPetition(s.Db.QueryRow(ctx, selectPetition+` WHERE id = $1`, id), id)
}

func (s *CoinStore) Petitions(ctx context.Context, status coin.PetitionStatus) ([]coin.Petition, error) {
	rows, err := s.Db.Query(ctx, selectPetition+`
		WHERE $1 = '' OR status = $1
		ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list petitions: %w", err)
	}
	defer rows.Close()

	petitions := []coin.Petition{}
	for rows.Next() {
		p, err := scanPetition(rows, uuid.Nil)
		if err != nil {
			return nil, err
		}
		petitions = append(petitions, p)
	}
	return petitions, rows.Err()
}

func (s *CoinStore) Rates(ctx context.Context) ([]coin.ExchangeRate, error) {
	rows, err := s.Db.Query(ctx, selectRate+` ORDER BY effective_from ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list exchange rates: %w", err)
	}
	defer rows.Close()

	rates := []coin.ExchangeRate{}
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

func (s *CoinStore) Transactions(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	return history(ctx, s.Db, coinLedger, walletID.String())
}

func (s *CoinStore) Instance(ctx context.Context, id uuid.UUID) (saga.Instance, error) {
	return sagaInstance(ctx, s.Db, coinService, id)
}

type coinTx struct {
	journal
}

func (t *coinTx) Wallet(ctx context.Context, id uuid.UUID) (coin.Wallet, error) {
	return scanCoinWallet(t.tx.QueryRow(ctx, selectCoinWallet+` WHERE id = $1 FOR UPDATE`, id), id)
}

func (t *coinTx) CreateWallet(ctx context.Context, w coin.Wallet) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO coin_wallets (id, owner_name, balance, reserved, status, bank_account_number, phone_wallet_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.OwnerName, w.Balance, w.Reserved, string(w.Status), w.BankAccountNumber, w.PhoneWalletID, w.CreatedAt, w.UpdatedAt)
	return wrapErr(err, "coin wallet "+w.ID.String())
}

func (t *coinTx) SaveWallet(ctx context.Context, w coin.Wallet) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE coin_wallets
		SET owner_name = $2, balance = $3, reserved = $4, status = $5, bank_account_number = $6, phone_wallet_id = $7, updated_at = $8
		WHERE id = $1`,
		w.ID, w.OwnerName, w.Balance, w.Reserved, string(w.Status), w.BankAccountNumber, w.PhoneWalletID, w.UpdatedAt)
	return mustAffect(tag, err, "coin wallet "+w.ID.String())
}

func (t *coinTx) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM coin_wallets WHERE id = $1`, id)
	return mustAffect(tag, err, "coin wallet "+id.String())
}

func (t *coinTx) Petition(ctx context.Context, id uuid.UUID) (coin.Petition, error) {
	return scanPetition(t.tx.QueryRow(ctx, selectPetition+` WHERE id = $1 FOR UPDATE`, id), id)
}

func (t *coinTx) CreatePetition(ctx context.Context, p coin.Petition) error {
	buyerMethod, sellerMethod, err := encodeMethods(p)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO petitions (id, coin_amount, buyer_wallet_id, seller_wallet_id, buyer_payment_method,
			seller_payment_method, status, active_saga_id, failed_attempts, last_failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.CoinAmount, p.BuyerWalletID, p.SellerWalletID, buyerMethod, sellerMethod,
		string(p.Status), p.ActiveSagaID, p.FailedAttempts, p.LastFailureReason, p.CreatedAt, p.UpdatedAt)
	return wrapErr(err, "petition "+p.ID.String())
}

func (t *coinTx) SavePetition(ctx context.Context, p coin.Petition) error {
	_, sellerMethod, err := encodeMethods(p)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE petitions
		SET seller_payment_method = $2, status = $3, active_saga_id = $4,
		    failed_attempts = $5, last_failure_reason = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, sellerMethod, string(p.Status), p.ActiveSagaID, p.FailedAttempts, p.LastFailureReason, p.UpdatedAt)
	return mustAffect(tag, err, "petition "+p.ID.String())
}

func (t *coinTx) CreateRate(ctx context.Context, r coin.ExchangeRate) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO exchange_rates (id, buy_rate, sell_rate, effective_from, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.BuyRate, r.SellRate, r.EffectiveFrom, r.CreatedAt)
	return wrapErr(err, "exchange rate")
}

func (t *coinTx) CurrentRate(ctx context.Context, at time.Time) (coin.ExchangeRate, error) {
	return scanRate(t.tx.QueryRow(ctx, selectRate+`
		WHERE effective_from <= $1
		ORDER BY effective_from DESC, created_at DESC
		LIMIT 1`, at))
}

func (t *coinTx) AppendTransaction(ctx context.Context, row domain.Transaction) error {
	return appendTransaction(ctx, t.tx, coinLedger, row)
}

const selectCoinWallet = `
	SELECT id, owner_name, balance, reserved, status, bank_account_number, phone_wallet_id, created_at, updated_at
	FROM coin_wallets`

const selectPetition = `
	SELECT id, coin_amount, buyer_wallet_id, seller_wallet_id, buyer_payment_method, seller_payment_method,
	       status, active_saga_id, failed_attempts, last_failure_reason, created_at, updated_at
	FROM petitions`

const selectRate = `
	SELECT id, buy_rate, sell_rate, effective_from, created_at
	FROM exchange_rates`

func scanCoinWallet(row pgx.Row, id uuid.UUID) (coin.Wallet, error) {
	var (
		w      coin.Wallet
		status string
	)
	err := row.Scan(&w.ID, &w.OwnerName, &w.Balance, &w.Reserved, &status, &w.BankAccountNumber, &w.PhoneWalletID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return coin.Wallet{}, wrapErr(err, "coin wallet "+id.String())
	}
	w.Status = coin.WalletStatus(status)
	return w, nil
}

func encodeMethods(p coin.Petition) ([]byte, []byte, error) {
	buyer, err := json.Marshal(p.BuyerPaymentMethod)
	if err != nil {
		return nil, nil, fmt.Errorf("encode buyer payment method: %w", err)
	}
	if p.SellerPaymentMethod == nil {
		return buyer, nil, nil
	}
	seller, err := json.Marshal(p.SellerPaymentMethod)
	if err != nil {
		return nil, nil, fmt.Errorf("encode seller payment method: %w", err)
	}
	return buyer, seller, nil
}

func scanPetition(row pgx.Row, id uuid.UUID) (coin.Petition, error) {
	var (
		p             coin.Petition
		buyer, seller []byte
		status        string
	)
	err := row.Scan(&p.ID, &p.CoinAmount, &p.BuyerWalletID, &p.SellerWalletID, &buyer, &seller,
		&status, &p.ActiveSagaID, &p.FailedAttempts, &p.LastFailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return coin.Petition{}, wrapErr(err, "petition "+id.String())
	}
	p.Status = coin.PetitionStatus(status)
	if err := json.Unmarshal(buyer, &p.BuyerPaymentMethod); err != nil {
		return coin.Petition{}, fmt.Errorf("decode buyer payment method: %w", err)
	}
	if seller != nil {
		var m domain.PaymentMethod
		if err := json.Unmarshal(seller, &m); err != nil {
			return coin.Petition{}, fmt.Errorf("decode seller payment method: %w", err)
		}
		p.SellerPaymentMethod = &m
	}
	return p, nil
}

func scanRate(row pgx.Row) (coin.ExchangeRate, error) {
	var r coin.ExchangeRate
	if err := row.Scan(&r.ID, &r.BuyRate, &r.SellRate, &r.EffectiveFrom, &r.CreatedAt); err != nil {
		return coin.ExchangeRate{}, wrapErr(err, "no exchange rate in effect")
	}
	return r, nil
}
