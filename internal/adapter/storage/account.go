package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

const bankService = "bank"

// BankStore implements bank.Store.
type BankStore struct {
	Db *pgxpool.Pool
}

func NewBankStore(db *pgxpool.Pool) *BankStore {
	return &BankStore{Db: db}
}

// Outbox returns the relay's view of this store's queued envelopes.
func (s *BankStore) Outbox() *Outbox {
	return NewOutbox(s.Db, bankService)
}

func (s *BankStore) WithTx(ctx context.Context, fn func(tx bank.Tx) error) error {
	return runTx(ctx, s.Db, func(tx pgx.Tx) error {
		return fn(&bankTx{journal: journal{tx: tx, service: bankService}})
	})
}

func (s *BankStore) Account(ctx context.Context, number string) (bank.Account, error) {
	return scanAccount(s.Db.QueryRow(ctx, selectAccount+` WHERE number = $1`, number), number)
}

func (s *BankStore) Accounts(ctx context.Context) ([]bank.Account, error) {
	rows, err := s.Db.Query(ctx, selectAccount+` ORDER BY created_at ASC, number ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []bank.Account{}
	for rows.Next() {
		a, err := scanAccount(rows, "")
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *BankStore) Card(ctx context.Context, number string) (bank.DebitCard, error) {
	return scanCard(s.Db.QueryRow(ctx, selectCard+` WHERE number = $1`, number))
}

func (s *BankStore) Transactions(ctx context.Context, number string) ([]domain.Transaction, error) {
	return history(ctx, s.Db, bankLedger, number)
}

func (s *BankStore) Instance(ctx context.Context, id uuid.UUID) (saga.Instance, error) {
	return sagaInstance(ctx, s.Db, bankService, id)
}

type bankTx struct {
	journal
}

func (t *bankTx) Account(ctx context.Context, number string) (bank.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, selectAccount+` WHERE number = $1 FOR UPDATE`, number), number)
}

func (t *bankTx) CreateAccount(ctx context.Context, a bank.Account) error {
	terms, err := encodeTerms(a)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO accounts (number, id, customer_id, kind, currency, balance, movements_this_month,
			max_fee_free_movements, commission_fee_active, commission_fee, terms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.Number, a.ID, a.CustomerID, string(a.Kind), string(a.Currency), a.Balance, a.MovementsThisMonth,
		a.MaxFeeFreeMovements, a.CommissionFeeActive, a.CommissionFee, terms, a.CreatedAt, a.UpdatedAt)
	return wrapErr(err, "account "+a.Number)
}

func (t *bankTx) SaveAccount(ctx context.Context, a bank.Account) error {
	terms, err := encodeTerms(a)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts
		SET balance = $2, movements_this_month = $3, max_fee_free_movements = $4,
		    commission_fee_active = $5, commission_fee = $6, terms = $7, updated_at = $8
		WHERE number = $1`,
		a.Number, a.Balance, a.MovementsThisMonth, a.MaxFeeFreeMovements,
		a.CommissionFeeActive, a.CommissionFee, terms, a.UpdatedAt)
	return mustAffect(tag, err, "account "+a.Number)
}

func (t *bankTx) DeleteAccount(ctx context.Context, number string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM accounts WHERE number = $1`, number)
	return mustAffect(tag, err, "account "+number)
}

func (t *bankTx) ResetMovements(ctx context.Context) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET movements_this_month = 0 WHERE movements_this_month <> 0`)
	if err != nil {
		return 0, fmt.Errorf("reset movements: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *bankTx) Card(ctx context.Context, number string) (bank.DebitCard, error) {
	return scanCard(t.tx.QueryRow(ctx, selectCard+` WHERE number = $1 FOR UPDATE`, number))
}

func (t *bankTx) CreateCard(ctx context.Context, c bank.DebitCard) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO debit_cards (number, main_account_number, linked_account_numbers, created_at)
		VALUES ($1, $2, $3, $4)`,
		c.Number, c.MainAccountNumber, c.LinkedAccountNumbers, c.CreatedAt)
	return wrapErr(err, "debit card")
}

func (t *bankTx) DeleteCard(ctx context.Context, number string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM debit_cards WHERE number = $1`, number)
	return mustAffect(tag, err, "debit card")
}

func (t *bankTx) AppendTransaction(ctx context.Context, row domain.Transaction) error {
	return appendTransaction(ctx, t.tx, bankLedger, row)
}

const selectAccount = `
	SELECT number, id, customer_id, kind, currency, balance, movements_this_month,
	       max_fee_free_movements, commission_fee_active, commission_fee, terms, created_at, updated_at
	FROM accounts`

const selectCard = `
	SELECT number, main_account_number, linked_account_numbers, created_at
	FROM debit_cards`

// accountTerms is the JSONB shape of an account's kind-specific terms.
type accountTerms struct {
	Savings   *bank.SavingsTerms   `json:"savings,omitempty"`
	FixedTerm *bank.FixedTermTerms `json:"fixed_term,omitempty"`
	Checking  *bank.CheckingTerms  `json:"checking,omitempty"`
}

func encodeTerms(a bank.Account) ([]byte, error) {
	data, err := json.Marshal(accountTerms{Savings: a.Savings, FixedTerm: a.FixedTerm, Checking: a.Checking})
	if err != nil {
		return nil, fmt.Errorf("encode terms of %s: %w", a.Number, err)
	}
	return data, nil
}

func scanAccount(row pgx.Row, number string) (bank.Account, error) {
	var (
		a              bank.Account
		kind, currency string
		terms          []byte
	)
	err := row.Scan(&a.Number, &a.ID, &a.CustomerID, &kind, &currency, &a.Balance, &a.MovementsThisMonth,
		&a.MaxFeeFreeMovements, &a.CommissionFeeActive, &a.CommissionFee, &terms, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return bank.Account{}, wrapErr(err, "account "+number)
	}
	a.Kind = bank.Kind(kind)
	a.Currency = domain.Currency(currency)

	var t accountTerms
	if err := json.Unmarshal(terms, &t); err != nil {
		return bank.Account{}, fmt.Errorf("decode terms of %s: %w", a.Number, err)
	}
	a.Savings, a.FixedTerm, a.Checking = t.Savings, t.FixedTerm, t.Checking
	return a, nil
}

func scanCard(row pgx.Row) (bank.DebitCard, error) {
	var c bank.DebitCard
	err := row.Scan(&c.Number, &c.MainAccountNumber, &c.LinkedAccountNumbers, &c.CreatedAt)
	if err != nil {
		return bank.DebitCard{}, wrapErr(err, "debit card")
	}
	return c, nil
}
