package phone_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/gosettle/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/logging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	mt "github.com/ibrahimkeyboad/gosettle/internal/core/messaging/messagingtest"
	"github.com/ibrahimkeyboad/gosettle/internal/core/phone"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type transferCall struct {
	ref, from, to string
	amount        decimal.Decimal
}

type testGateway struct {
	calls []transferCall
	err   error
}

func (g *testGateway) CardTransfer(_ context.Context, ref, fromCard, toCard string, amount decimal.Decimal) (domain.Transaction, error) {
	if g.err != nil {
		return domain.Transaction{}, g.err
	}
	g.calls = append(g.calls, transferCall{ref: ref, from: fromCard, to: toCard, amount: amount})
	return domain.NewTransaction("10000000000001", domain.TransactionDebit, amount, decimal.Zero, testNow), nil
}

type fixture struct {
	svc     *phone.Service
	store   *memory.PhoneStore
	gateway *testGateway
	sub     *mt.Subscriber
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewPhoneStore()
	gateway := &testGateway{}
	svc := phone.NewService(store, gateway, messaging.JSONCodec{}, logging.Discard())
	svc.WithClock(func() time.Time { return testNow })
	sub := mt.NewSubscriber()
	require.NoError(t, phone.NewSagaHandlers(svc, logging.Discard()).Register(sub))
	return fixture{svc: svc, store: store, gateway: gateway, sub: sub}
}

// activeWallet creates a wallet for phoneNumber and confirms card on it.
func (f fixture) activeWallet(t *testing.T, phoneNumber, card string) phone.Wallet {
	t.Helper()
	ctx := context.Background()
	w, err := f.svc.CreateWallet(ctx, phoneNumber, "Owner "+phoneNumber)
	require.NoError(t, err)

	env := mt.MustEnvelope(messaging.WorkflowDebitCardAssociation, messaging.TopicDebitCardAssociationSuccess, w.ID.String(), messaging.AssociationPayload{
		WalletID:  w.ID,
		Reference: card,
	})
	require.NoError(t, f.sub.Deliver(ctx, env))

	w, err = f.svc.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, phone.WalletActive, w.Status)
	return w
}

const (
	cardA = "4111111111111111"
	cardB = "5555555555554444"
)

func Test_CreateWallet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	w, err := f.svc.CreateWallet(ctx, "+51987654321", "Ada")
	require.NoError(t, err)
	require.Equal(t, phone.WalletPendingDebitCardAssociation, w.Status)
	require.Nil(t, w.CardNumber)

	byPhone, err := f.svc.WalletByPhone(ctx, "+51987654321")
	require.NoError(t, err)
	require.Equal(t, w.ID, byPhone.ID)

	_, err = f.svc.CreateWallet(ctx, "+51987654321", "Someone else")
	require.ErrorIs(t, err, domain.ErrInvalidOperation)

	for _, bad := range []string{"", "12345", "98765432a", "+1234567890123456"} {
		_, err = f.svc.CreateWallet(ctx, bad, "Ada")
		require.ErrorIs(t, err, domain.ErrInvalidArgument, bad)
	}
}

func Test_UpdateAndDeleteWallet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w, err := f.svc.CreateWallet(ctx, "987654321", "Ada")
	require.NoError(t, err)

	updated, err := f.svc.UpdateOwner(ctx, w.ID, "Ada L.")
	require.NoError(t, err)
	require.Equal(t, "Ada L.", updated.OwnerName)

	all, err := f.svc.ListWallets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, f.svc.DeleteWallet(ctx, w.ID))
	_, err = f.svc.GetWallet(ctx, w.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, f.svc.DeleteWallet(ctx, w.ID), domain.ErrNotFound)
}

func Test_AssociateCard(t *testing.T) {
	ctx := context.Background()

	t.Run("ok, queues the request with a normalized number", func(t *testing.T) {
		f := newFixture(t)
		w, err := f.svc.CreateWallet(ctx, "987654321", "Ada")
		require.NoError(t, err)

		ticket, err := f.svc.AssociateCard(ctx, w.ID, "4111 1111 1111 1111")
		require.NoError(t, err)
		require.Equal(t, messaging.TopicDebitCardAssociationRequest, ticket.Step)

		pending := f.store.Pending()
		require.Len(t, pending, 1)
		require.Equal(t, cardA, pending[0].Key)
		p := mt.MustDecode[messaging.AssociationPayload](pending[0])
		require.Equal(t, cardA, p.Reference)
		require.Equal(t, w.ID, p.WalletID)
	})

	t.Run("fail, checksum", func(t *testing.T) {
		f := newFixture(t)
		w, err := f.svc.CreateWallet(ctx, "987654321", "Ada")
		require.NoError(t, err)
		_, err = f.svc.AssociateCard(ctx, w.ID, "4111111111111112")
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
		require.Empty(t, f.store.Pending())
	})

	t.Run("fail, unknown wallet", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AssociateCard(ctx, uuid.New(), cardA)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func Test_Resolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.activeWallet(t, "987654321", cardA)
	_, err := f.svc.CreateWallet(ctx, "912345678", "Pending")
	require.NoError(t, err)

	card, err := phone.Resolve(ctx, f.store, "987654321")
	require.NoError(t, err)
	require.Equal(t, cardA, card)

	_, err = phone.Resolve(ctx, f.store, "912345678")
	require.ErrorIs(t, err, domain.ErrNotEligible)

	_, err = phone.Resolve(ctx, f.store, "900000000")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_SendPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("ok, transfers between cards and records movements", func(t *testing.T) {
		f := newFixture(t)
		from := f.activeWallet(t, "987654321", cardA)
		to := f.activeWallet(t, "912345678", cardB)

		payment, err := f.svc.SendPayment(ctx, "", "987654321", "912345678", decimal.RequireFromString("12.50"))
		require.NoError(t, err)
		require.Equal(t, domain.TransactionDebit, payment.Debit.Type)

		require.Len(t, f.gateway.calls, 1)
		require.Equal(t, cardA, f.gateway.calls[0].from)
		require.Equal(t, cardB, f.gateway.calls[0].to)

		out, err := f.svc.Movements(ctx, from.ID)
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, domain.TransactionDebit, out[0].Type)

		in, err := f.svc.Movements(ctx, to.ID)
		require.NoError(t, err)
		require.Len(t, in, 1)
		require.Equal(t, domain.TransactionCredit, in[0].Type)
	})

	t.Run("ok, ref reaches the bank", func(t *testing.T) {
		f := newFixture(t)
		f.activeWallet(t, "987654321", cardA)
		f.activeWallet(t, "912345678", cardB)

		_, err := f.svc.SendPayment(ctx, "phone-payment:k-1", "987654321", "912345678", decimal.NewFromInt(3))
		require.NoError(t, err)
		require.Len(t, f.gateway.calls, 1)
		require.Equal(t, "phone-payment:k-1", f.gateway.calls[0].ref)
	})

	t.Run("fail, receiver has no card", func(t *testing.T) {
		f := newFixture(t)
		f.activeWallet(t, "987654321", cardA)
		_, err := f.svc.CreateWallet(ctx, "912345678", "Pending")
		require.NoError(t, err)

		_, err = f.svc.SendPayment(ctx, "", "987654321", "912345678", decimal.NewFromInt(1))
		require.ErrorIs(t, err, domain.ErrNotEligible)
		require.Empty(t, f.gateway.calls)
	})

	t.Run("fail, bank rejection records nothing", func(t *testing.T) {
		f := newFixture(t)
		from := f.activeWallet(t, "987654321", cardA)
		f.activeWallet(t, "912345678", cardB)
		f.gateway.err = fmt.Errorf("%w: card ending 1111", domain.ErrInsufficientFunds)

		_, err := f.svc.SendPayment(ctx, "", "987654321", "912345678", decimal.NewFromInt(1))
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		out, err := f.svc.Movements(ctx, from.ID)
		require.NoError(t, err)
		require.Empty(t, out)
	})

	t.Run("fail, same phone", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.SendPayment(ctx, "", "987654321", "987654321", decimal.NewFromInt(1))
		require.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("fail, bank unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.activeWallet(t, "987654321", cardA)
		f.activeWallet(t, "912345678", cardB)
		f.gateway.err = fmt.Errorf("%w: bank-account-service: circuit breaker is open", domain.ErrServiceUnavailable)

		_, err := f.svc.SendPayment(ctx, "", "987654321", "912345678", decimal.NewFromInt(1))
		require.True(t, errors.Is(err, domain.ErrServiceUnavailable))
	})
}
