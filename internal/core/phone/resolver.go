package phone

import (
	"context"
	"fmt"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// Resolve returns the card number behind a phone wallet.
func Resolve(ctx context.Context, finder walletFinder, phoneNumber string) (string, error) {
	w, err := finder.WalletByPhone(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if !w.Payable() {
		return "", fmt.Errorf("%w: phone wallet %s is %s without a usable card", domain.ErrNotEligible, phoneNumber, w.Status)
	}
	return *w.CardNumber, nil
}

// methodResolvers turns a payment method into the card number the bank
// needs. Bank accounts need no card and resolve to "".
var methodResolvers = map[domain.PaymentMethodType]func(ctx context.Context, finder walletFinder, id string) (string, error){
	domain.PaymentBankAccount: func(context.Context, walletFinder, string) (string, error) {
		return "", nil
	},
	domain.PaymentPhoneWallet: Resolve,
}

func resolveMethod(ctx context.Context, finder walletFinder, method domain.PaymentMethod) (string, error) {
	if err := method.Validate(); err != nil {
		return "", err
	}
	return methodResolvers[method.Type](ctx, finder, method.ID)
}
