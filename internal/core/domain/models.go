package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit       TransactionType = "DEPOSIT"
	TransactionWithdrawal    TransactionType = "WITHDRAWAL"
	TransactionDebit         TransactionType = "DEBIT"
	TransactionCredit        TransactionType = "CREDIT"
	TransactionCreditPayment TransactionType = "CREDIT_PAYMENT"
)

// Transaction is one row of a ledger's append-only log. Reference is the
// account number or wallet id the row belongs to.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	Reference       string          `json:"reference"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	Type            TransactionType `json:"type"`
	RelatedCreditID *string         `json:"related_credit_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func NewTransaction(reference string, typ TransactionType, amount, fee decimal.Decimal, at time.Time) Transaction {
	return Transaction{
		ID:        uuid.New(),
		Reference: reference,
		Amount:    amount,
		Fee:       fee,
		Type:      typ,
		CreatedAt: at,
	}
}

type CustomerType string

const (
	CustomerPersonal CustomerType = "PERSONAL"
	CustomerBusiness CustomerType = "BUSINESS"
)
