package phone

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

type WalletStatus string

const (
	WalletActive                      WalletStatus = "ACTIVE"
	WalletPendingDebitCardAssociation WalletStatus = "PENDING_DEBITCARD_ASSOCIATION"
)

// Wallet is a phone-linked e-wallet. It holds no balance of its own; it
// pays and is paid through its associated debit card.
type Wallet struct {
	ID          uuid.UUID    `json:"id"`
	PhoneNumber string       `json:"phone_number"`
	OwnerName   string       `json:"owner_name"`
	Status      WalletStatus `json:"status"`
	CardNumber  *string      `json:"card_number,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Payable reports whether the wallet may act as a payment source or
// destination.
func (w Wallet) Payable() bool {
	return w.Status == WalletActive && w.CardNumber != nil
}

// walletFinder is satisfied by both Store and Tx.
type walletFinder interface {
	WalletByPhone(ctx context.Context, phoneNumber string) (Wallet, error)
}

type Store interface {
	walletFinder
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Wallet(ctx context.Context, id uuid.UUID) (Wallet, error)
	Wallets(ctx context.Context) ([]Wallet, error)
	Movements(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
	saga.Reader
}

// Tx is one atomic unit of work. Wallet lookups lock what they return.
type Tx interface {
	walletFinder
	saga.Journal
	Wallet(ctx context.Context, id uuid.UUID) (Wallet, error)
	CreateWallet(ctx context.Context, w Wallet) error
	SaveWallet(ctx context.Context, w Wallet) error
	DeleteWallet(ctx context.Context, id uuid.UUID) error
	AppendMovement(ctx context.Context, t domain.Transaction) error
}
