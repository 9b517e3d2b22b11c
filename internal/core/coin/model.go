package coin

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

type WalletStatus string

const (
	WalletActive                    WalletStatus = "ACTIVE"
	WalletBlocked                   WalletStatus = "BLOCKED"
	WalletPendingOperationsApproval WalletStatus = "PENDING_OPERATIONS_APPROVAL"
)

// Wallet holds coin units. The associated bank account and phone wallet are
// references into ledgers this service does not own. Reserved is the part of
// Balance pledged to exchanges still in flight.
type Wallet struct {
	ID                uuid.UUID       `json:"id"`
	OwnerName         string          `json:"owner_name"`
	Balance           decimal.Decimal `json:"balance"`
	Reserved          decimal.Decimal `json:"reserved"`
	Status            WalletStatus    `json:"status"`
	BankAccountNumber *string         `json:"bank_account_number,omitempty"`
	PhoneWalletID     *uuid.UUID      `json:"phone_wallet_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Available is the balance not pledged to an in-flight exchange.
func (w Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.Reserved)
}

// release returns a pledge made at accept time. It never goes below zero.
func (w *Wallet) release(amount decimal.Decimal) {
	w.Reserved = decimal.Max(w.Reserved.Sub(amount), decimal.Zero)
}

// CanSell reports whether the wallet may give up coins in an exchange.
func (w Wallet) CanSell() bool {
	return w.Status == WalletActive || w.BankAccountNumber != nil || w.PhoneWalletID != nil
}

// CanBuy reports whether the wallet may receive purchased or exchanged coins.
func (w Wallet) CanBuy() bool {
	return w.Status == WalletActive || w.Status == WalletPendingOperationsApproval
}

// activate moves a wallet to ACTIVE unless an operator blocked it.
func (w *Wallet) activate() {
	if w.Status != WalletBlocked {
		w.Status = WalletActive
	}
}

// ExchangeRate prices coins in money. SellRate applies when the platform
// sells coins to a wallet, BuyRate when wallets trade between themselves.
type ExchangeRate struct {
	ID            uuid.UUID       `json:"id"`
	BuyRate       decimal.Decimal `json:"buy_rate"`
	SellRate      decimal.Decimal `json:"sell_rate"`
	EffectiveFrom time.Time       `json:"effective_from"`
	CreatedAt     time.Time       `json:"created_at"`
}

type PetitionStatus string

const (
	PetitionPending  PetitionStatus = "PENDING"
	PetitionAccepted PetitionStatus = "ACCEPTED"
	PetitionRejected PetitionStatus = "REJECTED"
)

// Petition is an offer for a buyer wallet to take CoinAmount coins from a
// seller wallet. ActiveSagaID is set while an exchange for it is in flight;
// a failed exchange clears it and leaves the petition PENDING with the
// failure recorded.
type Petition struct {
	ID                  uuid.UUID             `json:"id"`
	CoinAmount          decimal.Decimal       `json:"coin_amount"`
	BuyerWalletID       uuid.UUID             `json:"buyer_wallet_id"`
	SellerWalletID      uuid.UUID             `json:"seller_wallet_id"`
	BuyerPaymentMethod  domain.PaymentMethod  `json:"buyer_payment_method"`
	SellerPaymentMethod *domain.PaymentMethod `json:"seller_payment_method,omitempty"`
	Status              PetitionStatus        `json:"status"`
	ActiveSagaID        *uuid.UUID            `json:"active_saga_id,omitempty"`
	FailedAttempts      int                   `json:"failed_attempts"`
	LastFailureReason   string                `json:"last_failure_reason,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// recordFailure hands the petition back for another attempt.
func (p *Petition) recordFailure(reason string, now time.Time) {
	p.ActiveSagaID = nil
	p.FailedAttempts++
	p.LastFailureReason = reason
	p.UpdatedAt = now
}

func (p Petition) acceptable() bool {
	return p.Status == PetitionPending && p.ActiveSagaID == nil
}
