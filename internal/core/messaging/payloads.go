package messaging

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// PurchasePayload travels the whole purchase saga. CardNumber is filled in
// by the resolver when the payment method is a phone wallet.
type PurchasePayload struct {
	WalletID      uuid.UUID            `json:"wallet_id"`
	CoinAmount    decimal.Decimal      `json:"coin_amount"`
	PaymentAmount decimal.Decimal      `json:"payment_amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	CardNumber    string               `json:"card_number,omitempty"`
	Reason        string               `json:"reason,omitempty"`
}

// ExchangePayload travels the exchange saga. The buyer pays PaymentAmount to
// the seller and receives CoinAmount coins from the seller's wallet.
type ExchangePayload struct {
	PetitionID          uuid.UUID            `json:"petition_id"`
	BuyerWalletID       uuid.UUID            `json:"buyer_wallet_id"`
	SellerWalletID      uuid.UUID            `json:"seller_wallet_id"`
	CoinAmount          decimal.Decimal      `json:"coin_amount"`
	PaymentAmount       decimal.Decimal      `json:"payment_amount"`
	BuyerPaymentMethod  domain.PaymentMethod `json:"buyer_payment_method"`
	SellerPaymentMethod domain.PaymentMethod `json:"seller_payment_method"`
	BuyerCardNumber     string               `json:"buyer_card_number,omitempty"`
	SellerCardNumber    string               `json:"seller_card_number,omitempty"`
	Reason              string               `json:"reason,omitempty"`
}

// AssociationPayload links a requesting wallet to a resource another service
// owns. Reference is an account number, a phone wallet id or a card number.
type AssociationPayload struct {
	WalletID  uuid.UUID `json:"wallet_id"`
	Reference string    `json:"reference"`
	Reason    string    `json:"reason,omitempty"`
}
