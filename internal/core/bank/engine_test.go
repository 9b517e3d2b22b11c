package bank_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/gosettle/internal/adapter/client"
	"github.com/ibrahimkeyboad/gosettle/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
	"github.com/ibrahimkeyboad/gosettle/internal/core/logging"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*bank.Engine, *memory.BankStore) {
	t.Helper()
	store := memory.NewBankStore()
	customers := client.StaticCustomers{
		Types:   map[string]domain.CustomerType{"biz-1": domain.CustomerBusiness},
		Default: domain.CustomerPersonal,
	}
	engine := bank.NewEngine(store, customers, logging.Discard())
	engine.WithClock(func() time.Time { return testNow })
	return engine, store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func openChecking(t *testing.T, engine *bank.Engine, balance string) bank.Account {
	t.Helper()
	return open(t, engine, bank.NewAccount{
		CustomerID:          "cust-1",
		Kind:                bank.KindChecking,
		Currency:            domain.PEN,
		MaxFeeFreeMovements: 10,
		CommissionFee:       dec("5"),
		Checking:            &bank.CheckingTerms{Holders: []string{"cust-1"}, MaintenanceFee: dec("0")},
	}, balance)
}

func openSavings(t *testing.T, engine *bank.Engine, limit int, balance string) bank.Account {
	t.Helper()
	return open(t, engine, bank.NewAccount{
		CustomerID:          "cust-1",
		Kind:                bank.KindSavings,
		Currency:            domain.PEN,
		MaxFeeFreeMovements: 10,
		CommissionFee:       dec("5"),
		Savings:             &bank.SavingsTerms{MonthlyMovementLimit: limit},
	}, balance)
}

func openFixedTerm(t *testing.T, engine *bank.Engine, allowed time.Time, balance string) bank.Account {
	t.Helper()
	return open(t, engine, bank.NewAccount{
		CustomerID: "cust-1",
		Kind:       bank.KindFixedTerm,
		Currency:   domain.PEN,
		FixedTerm:  &bank.FixedTermTerms{AllowedWithdrawalDate: allowed},
	}, balance)
}

// open creates the account and funds it without counting a movement.
func open(t *testing.T, engine *bank.Engine, req bank.NewAccount, balance string) bank.Account {
	t.Helper()
	ctx := context.Background()
	acc, err := engine.CreateAccount(ctx, req)
	require.NoError(t, err)
	if !dec(balance).IsZero() {
		acc, err = engine.AdjustBalance(ctx, acc.Number, bank.Adjustment{Direction: bank.Increase, Amount: dec(balance)})
		require.NoError(t, err)
	}
	return acc
}

func pen(amount string) domain.Money {
	return domain.NewMoney(dec(amount), domain.PEN)
}

func Test_CreateAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("ok, personal savings", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openSavings(t, engine, 5, "0")
		require.Len(t, acc.Number, 14)
		require.Equal(t, bank.KindSavings, acc.Kind)
		require.True(t, acc.Balance.IsZero())
		require.False(t, acc.CommissionFeeActive)

		got, err := engine.GetAccount(ctx, acc.Number)
		require.NoError(t, err)
		require.Equal(t, acc.ID, got.ID)
	})

	t.Run("ok, business checking", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		_, err := engine.CreateAccount(ctx, bank.NewAccount{
			CustomerID: "biz-1",
			Kind:       bank.KindChecking,
			Currency:   domain.USD,
			Checking:   &bank.CheckingTerms{MaintenanceFee: dec("12.50")},
		})
		require.NoError(t, err)
	})

	t.Run("fail, business savings", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		_, err := engine.CreateAccount(ctx, bank.NewAccount{
			CustomerID: "biz-1",
			Kind:       bank.KindSavings,
			Currency:   domain.PEN,
			Savings:    &bank.SavingsTerms{MonthlyMovementLimit: 3},
		})
		require.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("fail, terms do not match kind", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		_, err := engine.CreateAccount(ctx, bank.NewAccount{
			CustomerID: "cust-1",
			Kind:       bank.KindSavings,
			Currency:   domain.PEN,
			Checking:   &bank.CheckingTerms{},
		})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("fail, unknown currency", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		_, err := engine.CreateAccount(ctx, bank.NewAccount{
			CustomerID: "cust-1",
			Kind:       bank.KindChecking,
			Currency:   "GBP",
			Checking:   &bank.CheckingTerms{},
		})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("fail, no customer", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		_, err := engine.CreateAccount(ctx, bank.NewAccount{Kind: bank.KindChecking, Currency: domain.PEN})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func Test_CommissionLatch(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	acc := openSavings(t, engine, 20, "1000")

	for i := 1; i <= 10; i++ {
		txn, err := engine.Withdraw(ctx, acc.Number, pen("10"))
		require.NoError(t, err)
		require.True(t, txn.Fee.IsZero(), "movement %d should be free", i)
	}

	got, err := engine.GetAccount(ctx, acc.Number)
	require.NoError(t, err)
	require.Equal(t, 10, got.MovementsThisMonth)
	require.True(t, got.CommissionFeeActive)
	requireDecimal(t, "900", got.Balance)

	txn, err := engine.Withdraw(ctx, acc.Number, pen("10"))
	require.NoError(t, err)
	requireDecimal(t, "5", txn.Fee)
	require.Equal(t, domain.TransactionWithdrawal, txn.Type)

	got, err = engine.GetAccount(ctx, acc.Number)
	require.NoError(t, err)
	requireDecimal(t, "885", got.Balance)

	// A deposit once the latch is set nets the fee.
	txn, err = engine.Deposit(ctx, acc.Number, pen("100"))
	require.NoError(t, err)
	requireDecimal(t, "5", txn.Fee)
	got, err = engine.GetAccount(ctx, acc.Number)
	require.NoError(t, err)
	requireDecimal(t, "980", got.Balance)
}

func Test_Deposit(t *testing.T) {
	ctx := context.Background()

	t.Run("ok, counts a movement", func(t *testing.T) {
		engine, store := newTestEngine(t)
		acc := openChecking(t, engine, "0")

		txn, err := engine.Deposit(ctx, acc.Number, pen("250.75"))
		require.NoError(t, err)
		require.Equal(t, domain.TransactionDeposit, txn.Type)
		require.Equal(t, acc.Number, txn.Reference)

		got, err := store.Account(ctx, acc.Number)
		require.NoError(t, err)
		requireDecimal(t, "250.75", got.Balance)
		require.Equal(t, 1, got.MovementsThisMonth)

		history, err := engine.Transactions(ctx, acc.Number)
		require.NoError(t, err)
		require.Len(t, history, 1)
	})

	t.Run("fail, currency mismatch", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openChecking(t, engine, "0")
		_, err := engine.Deposit(ctx, acc.Number, domain.NewMoney(dec("10"), domain.USD))
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("fail, fee larger than deposit", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openChecking(t, engine, "1000")
		for i := 0; i < 10; i++ {
			_, err := engine.Withdraw(ctx, acc.Number, pen("1"))
			require.NoError(t, err)
		}
		_, err := engine.Deposit(ctx, acc.Number, pen("3"))
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("fail, unknown account", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		_, err := engine.Deposit(ctx, "00000000000000", pen("10"))
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func Test_Withdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("fail, insufficient funds leaves the account untouched", func(t *testing.T) {
		engine, store := newTestEngine(t)
		acc := openChecking(t, engine, "20")

		_, err := engine.Withdraw(ctx, acc.Number, pen("20.01"))
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		got, err := store.Account(ctx, acc.Number)
		require.NoError(t, err)
		requireDecimal(t, "20", got.Balance)
		require.Zero(t, got.MovementsThisMonth)

		history, err := store.Transactions(ctx, acc.Number)
		require.NoError(t, err)
		require.Empty(t, history)
	})

	t.Run("fail, savings movement limit", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openSavings(t, engine, 2, "100")

		_, err := engine.Withdraw(ctx, acc.Number, pen("1"))
		require.NoError(t, err)
		_, err = engine.Deposit(ctx, acc.Number, pen("1"))
		require.NoError(t, err)
		_, err = engine.Withdraw(ctx, acc.Number, pen("1"))
		require.ErrorIs(t, err, domain.ErrMovementLimitReached)
	})

	t.Run("fixed term is locked until its date", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		unlock := testNow.AddDate(0, 1, 0)
		acc := openFixedTerm(t, engine, unlock, "500")

		_, err := engine.Withdraw(ctx, acc.Number, pen("100"))
		require.ErrorIs(t, err, domain.ErrWithdrawalNotAllowed)

		engine.WithClock(func() time.Time { return unlock })
		_, err = engine.Withdraw(ctx, acc.Number, pen("100"))
		require.NoError(t, err)
	})
}

func Test_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("ok, books debit and credit", func(t *testing.T) {
		engine, store := newTestEngine(t)
		sender := openChecking(t, engine, "300")
		receiver := openSavings(t, engine, 5, "0")

		debit, err := engine.Transfer(ctx, sender.Number, receiver.Number, dec("120"))
		require.NoError(t, err)
		require.Equal(t, domain.TransactionDebit, debit.Type)
		require.Equal(t, sender.Number, debit.Reference)

		s, err := store.Account(ctx, sender.Number)
		require.NoError(t, err)
		requireDecimal(t, "180", s.Balance)
		require.Equal(t, 1, s.MovementsThisMonth)

		r, err := store.Account(ctx, receiver.Number)
		require.NoError(t, err)
		requireDecimal(t, "120", r.Balance)
		require.Zero(t, r.MovementsThisMonth)

		credits, err := store.Transactions(ctx, receiver.Number)
		require.NoError(t, err)
		require.Len(t, credits, 1)
		require.Equal(t, domain.TransactionCredit, credits[0].Type)
	})

	t.Run("fail, same account", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openChecking(t, engine, "100")
		_, err := engine.Transfer(ctx, acc.Number, acc.Number, dec("1"))
		require.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("fail, fixed term cannot send or receive", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		fixed := openFixedTerm(t, engine, testNow.AddDate(-1, 0, 0), "100")
		checking := openChecking(t, engine, "100")

		_, err := engine.Transfer(ctx, fixed.Number, checking.Number, dec("1"))
		require.ErrorIs(t, err, domain.ErrInvalidOperation)
		_, err = engine.Transfer(ctx, checking.Number, fixed.Number, dec("1"))
		require.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("fail, non-positive amount", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		a := openChecking(t, engine, "100")
		b := openChecking(t, engine, "100")
		_, err := engine.Transfer(ctx, a.Number, b.Number, dec("0"))
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func Test_AdjustBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("ok, credit payment is logged without a movement", func(t *testing.T) {
		engine, store := newTestEngine(t)
		acc := openChecking(t, engine, "100")

		got, err := engine.AdjustBalance(ctx, acc.Number, bank.Adjustment{
			Direction: bank.Decrease,
			Amount:    dec("40"),
			CreditID:  "credit-7",
		})
		require.NoError(t, err)
		requireDecimal(t, "60", got.Balance)
		require.Zero(t, got.MovementsThisMonth)

		history, err := store.Transactions(ctx, acc.Number)
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.Equal(t, domain.TransactionCreditPayment, history[0].Type)
		require.NotNil(t, history[0].RelatedCreditID)
		require.Equal(t, "credit-7", *history[0].RelatedCreditID)
	})

	t.Run("fail, decrease past zero", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openChecking(t, engine, "10")
		_, err := engine.AdjustBalance(ctx, acc.Number, bank.Adjustment{Direction: bank.Decrease, Amount: dec("11")})
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})

	t.Run("fail, unknown direction", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openChecking(t, engine, "10")
		_, err := engine.AdjustBalance(ctx, acc.Number, bank.Adjustment{Direction: "SIDEWAYS", Amount: dec("1")})
		require.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func Test_CommissionLatch_QuotaChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("ok, lowering the quota below the count turns fees on", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openSavings(t, engine, 30, "1000")
		for i := 0; i < 5; i++ {
			_, err := engine.Withdraw(ctx, acc.Number, pen("1"))
			require.NoError(t, err)
		}

		limit := 3
		updated, err := engine.UpdateAccountTerms(ctx, acc.Number, bank.TermsUpdate{MaxFeeFreeMovements: &limit})
		require.NoError(t, err)
		require.True(t, updated.CommissionFeeActive)

		for i := 0; i < 10; i++ {
			txn, err := engine.Withdraw(ctx, acc.Number, pen("1"))
			require.NoError(t, err)
			requireDecimal(t, "5", txn.Fee)
		}
	})

	t.Run("ok, a zero quota charges from the first movement", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := open(t, engine, bank.NewAccount{
			CustomerID:    "cust-1",
			Kind:          bank.KindChecking,
			Currency:      domain.PEN,
			CommissionFee: dec("2"),
			Checking:      &bank.CheckingTerms{Holders: []string{"cust-1"}, MaintenanceFee: dec("0")},
		}, "100")
		require.True(t, acc.CommissionFeeActive)

		txn, err := engine.Deposit(ctx, acc.Number, pen("10"))
		require.NoError(t, err)
		requireDecimal(t, "2", txn.Fee)

		got, err := engine.GetAccount(ctx, acc.Number)
		require.NoError(t, err)
		requireDecimal(t, "108", got.Balance)
	})

	t.Run("ok, raising the quota keeps the latch", func(t *testing.T) {
		engine, _ := newTestEngine(t)
		acc := openSavings(t, engine, 30, "1000")
		for i := 0; i < 10; i++ {
			_, err := engine.Withdraw(ctx, acc.Number, pen("1"))
			require.NoError(t, err)
		}

		limit := 50
		updated, err := engine.UpdateAccountTerms(ctx, acc.Number, bank.TermsUpdate{MaxFeeFreeMovements: &limit})
		require.NoError(t, err)
		require.True(t, updated.CommissionFeeActive)
	})
}

func Test_ResetMonthlyMovements(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t)
	busy := openChecking(t, engine, "1000")
	idle := openChecking(t, engine, "0")

	for i := 0; i < 10; i++ {
		_, err := engine.Withdraw(ctx, busy.Number, pen("1"))
		require.NoError(t, err)
	}

	n, err := engine.ResetMonthlyMovements(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := store.Account(ctx, busy.Number)
	require.NoError(t, err)
	require.Zero(t, got.MovementsThisMonth)
	require.True(t, got.CommissionFeeActive, "the latch survives the reset")

	other, err := store.Account(ctx, idle.Number)
	require.NoError(t, err)
	require.Zero(t, other.MovementsThisMonth)
}

func Test_UpdateAccountTerms(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	acc := openSavings(t, engine, 2, "0")

	limit := 3
	fee := dec("2.5")
	got, err := engine.UpdateAccountTerms(ctx, acc.Number, bank.TermsUpdate{
		MaxFeeFreeMovements: &limit,
		CommissionFee:       &fee,
		Savings:             &bank.SavingsTerms{MonthlyMovementLimit: 8},
	})
	require.NoError(t, err)
	require.Equal(t, 3, got.MaxFeeFreeMovements)
	requireDecimal(t, "2.5", got.CommissionFee)
	require.Equal(t, 8, got.Savings.MonthlyMovementLimit)

	_, err = engine.UpdateAccountTerms(ctx, acc.Number, bank.TermsUpdate{
		Checking: &bank.CheckingTerms{},
	})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func Test_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	funded := openChecking(t, engine, "1")
	empty := openChecking(t, engine, "0")

	require.ErrorIs(t, engine.DeleteAccount(ctx, funded.Number), domain.ErrInvalidOperation)
	require.NoError(t, engine.DeleteAccount(ctx, empty.Number))

	_, err := engine.GetAccount(ctx, empty.Number)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = engine.Transactions(ctx, empty.Number)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
