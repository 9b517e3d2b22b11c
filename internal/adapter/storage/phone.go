package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/phone"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

const phoneService = "phone"

// PhoneStore implements phone.Store.
type PhoneStore struct {
	Db *pgxpool.Pool
}

func NewPhoneStore(db *pgxpool.Pool) *PhoneStore {
	return &PhoneStore{Db: db}
}

func (s *PhoneStore) Outbox() *Outbox {
	return NewOutbox(s.Db, phoneService)
}

func (s *PhoneStore) WithTx(ctx context.Context, fn func(tx phone.Tx) error) error {
	return runTx(ctx, s.Db, func(tx pgx.Tx) error {
		return fn(&phoneTx{journal: journal{tx: tx, service: phoneService}})
	})
}

func (s *PhoneStore) Wallet(ctx context.Context, id uuid.UUID) (phone.Wallet, error) {
	return scanPhoneWallet(s.Db.QueryRow(ctx, selectPhoneWallet+` WHERE id = $1`, id), id.String())
}

func (s *PhoneStore) WalletByPhone(ctx context.Context, phoneNumber string) (phone.Wallet, error) {
	return scanPhoneWallet(s.Db.QueryRow(ctx, selectPhoneWallet+` WHERE phone_number = $1`, phoneNumber), phoneNumber)
}

func (s *PhoneStore) Wallets(ctx context.Context) ([]phone.Wallet, error) {
	rows, err := s.Db.Query(ctx, selectPhoneWallet+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list phone wallets: %w", err)
	}
	defer rows.Close()

	wallets := []phone.Wallet{}
	for rows.Next() {
		w, err := scanPhoneWallet(rows, "")
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (s *PhoneStore) Movements(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	return history(ctx, s.Db, phoneLedger, walletID.String())
}

func (s *PhoneStore) Instance(ctx context.Context, id uuid.UUID) (saga.Instance, error) {
	return sagaInstance(ctx, s.Db, phoneService, id)
}

type phoneTx struct {
	journal
}

func (t *phoneTx) Wallet(ctx context.Context, id uuid.UUID) (phone.Wallet, error) {
	return scanPhoneWallet(t.tx.QueryRow(ctx, selectPhoneWallet+` WHERE id = $1 FOR UPDATE`, id), id.String())
}

func (t *phoneTx) WalletByPhone(ctx context.Context, phoneNumber string) (phone.Wallet, error) {
	return scanPhoneWallet(t.tx.QueryRow(ctx, selectPhoneWallet+` WHERE phone_number = $1 FOR UPDATE`, phoneNumber), phoneNumber)
}

func (t *phoneTx) CreateWallet(ctx context.Context, w phone.Wallet) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO phone_wallets (id, phone_number, owner_name, status, card_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.PhoneNumber, w.OwnerName, string(w.Status), w.CardNumber, w.CreatedAt, w.UpdatedAt)
	return wrapErr(err, "phone wallet for "+w.PhoneNumber)
}

func (t *phoneTx) SaveWallet(ctx context.Context, w phone.Wallet) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE phone_wallets
		SET owner_name = $2, status = $3, card_number = $4, updated_at = $5
		WHERE id = $1`,
		w.ID, w.OwnerName, string(w.Status), w.CardNumber, w.UpdatedAt)
	return mustAffect(tag, err, "phone wallet "+w.ID.String())
}

func (t *phoneTx) DeleteWallet(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM phone_wallets WHERE id = $1`, id)
	return mustAffect(tag, err, "phone wallet "+id.String())
}

func (t *phoneTx) AppendMovement(ctx context.Context, row domain.Transaction) error {
	return appendTransaction(ctx, t.tx, phoneLedger, row)
}

const selectPhoneWallet = `
	SELECT id, phone_number, owner_name, status, card_number, created_at, updated_at
	FROM phone_wallets`

func scanPhoneWallet(row pgx.Row, ref string) (phone.Wallet, error) {
	var (
		w      phone.Wallet
		status string
	)
	err := row.Scan(&w.ID, &w.PhoneNumber, &w.OwnerName, &status, &w.CardNumber, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return phone.Wallet{}, wrapErr(err, "phone wallet "+ref)
	}
	w.Status = phone.WalletStatus(status)
	return w, nil
}
