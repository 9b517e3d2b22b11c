package bank

import (
	"context"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

// Store persists accounts, cards and their transaction log. Reads outside
// WithTx see committed state only.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Account(ctx context.Context, number string) (Account, error)
	Accounts(ctx context.Context) ([]Account, error)
	Card(ctx context.Context, number string) (DebitCard, error)
	Transactions(ctx context.Context, accountNumber string) ([]domain.Transaction, error)
	saga.Reader
}

// Tx is one atomic unit of work. Account and Card lock the row they return
// until the transaction ends.
type Tx interface {
	saga.Journal
	Account(ctx context.Context, number string) (Account, error)
	CreateAccount(ctx context.Context, a Account) error
	SaveAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, number string) error
	ResetMovements(ctx context.Context) (int64, error)
	Card(ctx context.Context, number string) (DebitCard, error)
	CreateCard(ctx context.Context, c DebitCard) error
	DeleteCard(ctx context.Context, number string) error
	AppendTransaction(ctx context.Context, t domain.Transaction) error
}
