package coin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Wallet(ctx context.Context, id uuid.UUID) (Wallet, error)
	Wallets(ctx context.Context) ([]Wallet, error)
	Petition(ctx context.Context, id uuid.UUID) (Petition, error)
	// Petitions lists petitions, filtered by status when it is non-empty.
	Petitions(ctx context.Context, status PetitionStatus) ([]Petition, error)
	Rates(ctx context.Context) ([]ExchangeRate, error)
	Transactions(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
	saga.Reader
}

// Tx is one atomic unit of work. Wallet and Petition lock what they return.
type Tx interface {
	saga.Journal
	Wallet(ctx context.Context, id uuid.UUID) (Wallet, error)
	CreateWallet(ctx context.Context, w Wallet) error
	SaveWallet(ctx context.Context, w Wallet) error
	DeleteWallet(ctx context.Context, id uuid.UUID) error
	Petition(ctx context.Context, id uuid.UUID) (Petition, error)
	CreatePetition(ctx context.Context, p Petition) error
	SavePetition(ctx context.Context, p Petition) error
	CreateRate(ctx context.Context, r ExchangeRate) error
	// CurrentRate returns the latest rate effective at or before at.
	CurrentRate(ctx context.Context, at time.Time) (ExchangeRate, error)
	AppendTransaction(ctx context.Context, t domain.Transaction) error
}
