package domain

import "fmt"

type PaymentMethodType string

const (
	PaymentBankAccount PaymentMethodType = "BANK_ACCOUNT"
	PaymentPhoneWallet PaymentMethodType = "PHONE_WALLET"
)

var paymentMethodTypes = map[PaymentMethodType]bool{
	PaymentBankAccount: true,
	PaymentPhoneWallet: true,
}

// PaymentMethod names the instrument a party pays or is paid with. ID is an
// account number for BANK_ACCOUNT and a phone number for PHONE_WALLET.
type PaymentMethod struct {
	Type PaymentMethodType `json:"type"`
	ID   string            `json:"id"`
}

func (p PaymentMethod) Validate() error {
	if !paymentMethodTypes[p.Type] {
		return fmt.Errorf("%w: unknown payment method type %q", ErrInvalidOperation, p.Type)
	}
	if p.ID == "" {
		return fmt.Errorf("%w: payment method id is required", ErrInvalidArgument)
	}
	return nil
}

func (p PaymentMethod) IsPhoneWallet() bool {
	return p.Type == PaymentPhoneWallet
}
