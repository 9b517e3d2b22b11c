package phone_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/gosettle/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	mt "github.com/ibrahimkeyboad/gosettle/internal/core/messaging/messagingtest"
	"github.com/ibrahimkeyboad/gosettle/internal/core/phone"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

func onlyPending(t *testing.T, store *memory.PhoneStore) messaging.Envelope {
	t.Helper()
	pending := store.Pending()
	require.Len(t, pending, 1)
	return pending[0]
}

func phoneMethod(number string) domain.PaymentMethod {
	return domain.PaymentMethod{Type: domain.PaymentPhoneWallet, ID: number}
}

func Test_ValidatePurchase(t *testing.T) {
	ctx := context.Background()

	purchase := func(method domain.PaymentMethod) (messaging.Envelope, uuid.UUID) {
		walletID := uuid.New()
		return mt.MustEnvelope(messaging.WorkflowPurchase, messaging.TopicPurchaseYankiValidationRequest, method.ID, messaging.PurchasePayload{
			WalletID:      walletID,
			CoinAmount:    decimal.NewFromInt(2),
			PaymentAmount: decimal.NewFromInt(20),
			PaymentMethod: method,
		}), walletID
	}

	t.Run("ok, attaches the card", func(t *testing.T) {
		f := newFixture(t)
		f.activeWallet(t, "987654321", cardA)
		env, _ := purchase(phoneMethod("987654321"))

		require.NoError(t, f.sub.Deliver(ctx, env))

		next := onlyPending(t, f.store)
		require.Equal(t, messaging.TopicPurchaseYankiValidationSuccess, next.Topic)
		require.Equal(t, cardA, next.Key)
		require.Equal(t, cardA, mt.MustDecode[messaging.PurchasePayload](next).CardNumber)

		inst, err := f.svc.Saga(ctx, env.SagaID)
		require.NoError(t, err)
		require.Equal(t, saga.StatusInProgress, inst.Status)
	})

	t.Run("fail, unknown phone", func(t *testing.T) {
		f := newFixture(t)
		env, walletID := purchase(phoneMethod("900000000"))

		require.NoError(t, f.sub.Deliver(ctx, env))

		next := onlyPending(t, f.store)
		require.Equal(t, messaging.TopicPurchaseYankiValidationFailed, next.Topic)
		require.Equal(t, walletID.String(), next.Key)
		require.NotEmpty(t, mt.MustDecode[messaging.PurchasePayload](next).Reason)
	})

	t.Run("fail, wallet without card", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateWallet(ctx, "987654321", "Pending")
		require.NoError(t, err)
		env, _ := purchase(phoneMethod("987654321"))

		require.NoError(t, f.sub.Deliver(ctx, env))
		require.Equal(t, messaging.TopicPurchaseYankiValidationFailed, onlyPending(t, f.store).Topic)
	})

	t.Run("fail, bank account is not a phone wallet", func(t *testing.T) {
		f := newFixture(t)
		env, _ := purchase(domain.PaymentMethod{Type: domain.PaymentBankAccount, ID: "10000000000001"})

		require.NoError(t, f.sub.Deliver(ctx, env))
		require.Equal(t, messaging.TopicPurchaseYankiValidationFailed, onlyPending(t, f.store).Topic)
	})
}

func Test_ValidateExchange(t *testing.T) {
	ctx := context.Background()

	exchange := func(buyer, seller domain.PaymentMethod) messaging.Envelope {
		return mt.MustEnvelope(messaging.WorkflowExchange, messaging.TopicExchangeYankiValidationRequest, buyer.ID, messaging.ExchangePayload{
			PetitionID:          uuid.New(),
			CoinAmount:          decimal.NewFromInt(3),
			PaymentAmount:       decimal.NewFromInt(6),
			BuyerPaymentMethod:  buyer,
			SellerPaymentMethod: seller,
		})
	}

	t.Run("ok, resolves both phone sides", func(t *testing.T) {
		f := newFixture(t)
		f.activeWallet(t, "987654321", cardA)
		f.activeWallet(t, "912345678", cardB)

		require.NoError(t, f.sub.Deliver(ctx, exchange(phoneMethod("987654321"), phoneMethod("912345678"))))

		next := onlyPending(t, f.store)
		require.Equal(t, messaging.TopicExchangeYankiValidationSuccess, next.Topic)
		require.Equal(t, cardA, next.Key)
		p := mt.MustDecode[messaging.ExchangePayload](next)
		require.Equal(t, cardA, p.BuyerCardNumber)
		require.Equal(t, cardB, p.SellerCardNumber)
	})

	t.Run("ok, bank account buyer keys by account", func(t *testing.T) {
		f := newFixture(t)
		f.activeWallet(t, "912345678", cardB)
		buyer := domain.PaymentMethod{Type: domain.PaymentBankAccount, ID: "10000000000001"}

		require.NoError(t, f.sub.Deliver(ctx, exchange(buyer, phoneMethod("912345678"))))

		next := onlyPending(t, f.store)
		require.Equal(t, messaging.TopicExchangeYankiValidationSuccess, next.Topic)
		require.Equal(t, buyer.ID, next.Key)
		p := mt.MustDecode[messaging.ExchangePayload](next)
		require.Empty(t, p.BuyerCardNumber)
		require.Equal(t, cardB, p.SellerCardNumber)
	})

	t.Run("fail, seller unresolved", func(t *testing.T) {
		f := newFixture(t)
		f.activeWallet(t, "987654321", cardA)
		env := exchange(phoneMethod("987654321"), phoneMethod("900000000"))

		require.NoError(t, f.sub.Deliver(ctx, env))

		next := onlyPending(t, f.store)
		require.Equal(t, messaging.TopicExchangeYankiValidationFailed, next.Topic)
		p := mt.MustDecode[messaging.ExchangePayload](next)
		require.Equal(t, p.PetitionID.String(), next.Key)
		require.Contains(t, p.Reason, "seller")
	})
}

func Test_RecordExchange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := f.activeWallet(t, "987654321", cardA)
	seller := f.activeWallet(t, "912345678", cardB)

	env := mt.MustEnvelope(messaging.WorkflowExchange, messaging.TopicExchangeSuccess, uuid.NewString(), messaging.ExchangePayload{
		PetitionID:          uuid.New(),
		PaymentAmount:       decimal.NewFromInt(6),
		BuyerPaymentMethod:  phoneMethod("987654321"),
		SellerPaymentMethod: phoneMethod("912345678"),
	})
	require.NoError(t, f.sub.Deliver(ctx, env))
	require.NoError(t, f.sub.Deliver(ctx, env))

	out, err := f.svc.Movements(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, domain.TransactionDebit, out[0].Type)

	in, err := f.svc.Movements(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, domain.TransactionCredit, in[0].Type)
}

func Test_PhoneWalletAssociation(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		reference func(t *testing.T, f fixture) string
		want      messaging.Topic
	}{
		"exists": {
			reference: func(t *testing.T, f fixture) string {
				w, err := f.svc.CreateWallet(ctx, "987654321", "Ada")
				require.NoError(t, err)
				return w.ID.String()
			},
			want: messaging.TopicPhoneWalletAssociationSuccess,
		},
		"missing": {
			reference: func(*testing.T, fixture) string { return uuid.NewString() },
			want:      messaging.TopicPhoneWalletAssociationFailed,
		},
		"not an id": {
			reference: func(*testing.T, fixture) string { return "987654321" },
			want:      messaging.TopicPhoneWalletAssociationFailed,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			coinWalletID := uuid.New()
			env := mt.MustEnvelope(messaging.WorkflowPhoneWalletAssociation, messaging.TopicPhoneWalletAssociationRequest, coinWalletID.String(), messaging.AssociationPayload{
				WalletID:  coinWalletID,
				Reference: tc.reference(t, f),
			})

			require.NoError(t, f.sub.Deliver(ctx, env))

			next := onlyPending(t, f.store)
			require.Equal(t, tc.want, next.Topic)
			require.Equal(t, coinWalletID.String(), next.Key)
		})
	}
}

func Test_CardAssociationOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("failed keeps the wallet pending", func(t *testing.T) {
		f := newFixture(t)
		w, err := f.svc.CreateWallet(ctx, "987654321", "Ada")
		require.NoError(t, err)

		env := mt.MustEnvelope(messaging.WorkflowDebitCardAssociation, messaging.TopicDebitCardAssociationFailed, w.ID.String(), messaging.AssociationPayload{
			WalletID:  w.ID,
			Reference: cardA,
			Reason:    "not found: card ending 1111",
		})
		require.NoError(t, f.sub.Deliver(ctx, env))

		got, err := f.svc.GetWallet(ctx, w.ID)
		require.NoError(t, err)
		require.Equal(t, phone.WalletPendingDebitCardAssociation, got.Status)

		inst, err := f.svc.Saga(ctx, env.SagaID)
		require.NoError(t, err)
		require.Equal(t, saga.StatusFailed, inst.Status)
	})

	t.Run("success for a deleted wallet concludes failed", func(t *testing.T) {
		f := newFixture(t)
		env := mt.MustEnvelope(messaging.WorkflowDebitCardAssociation, messaging.TopicDebitCardAssociationSuccess, "x", messaging.AssociationPayload{
			WalletID:  uuid.New(),
			Reference: cardA,
		})
		require.NoError(t, f.sub.Deliver(ctx, env))

		inst, err := f.svc.Saga(ctx, env.SagaID)
		require.NoError(t, err)
		require.Equal(t, saga.StatusFailed, inst.Status)
	})
}
