package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/coin"
	"github.com/ibrahimkeyboad/gosettle/internal/core/config"
	"github.com/ibrahimkeyboad/gosettle/internal/core/logging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/phone"
)

func Test_ParseMode(t *testing.T) {
	for _, s := range []string{"bank", "coin", "phone", "all"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		require.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("credit")
	require.Error(t, err)
}

// startInProcess wires every service on the in-memory stores and bus and
// runs the relays and consumers, but no listeners.
func startInProcess(t *testing.T) map[string]*fiber.App {
	t.Helper()
	cfg := &config.Config{
		Outbox: config.Outbox{PollInterval: 10 * time.Millisecond},
	}
	s, err := New(context.Background(), cfg, ModeAll, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.bus.Run(ctx)
	}()
	apps := make(map[string]*fiber.App)
	for _, u := range s.units {
		u.relay.Start(ctx)
		apps[u.name] = u.app
	}
	t.Cleanup(func() {
		cancel()
		<-done
		s.shutdownResources()
	})
	return apps
}

func call(t *testing.T, app *fiber.App, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, out), string(data))
	}
	return resp.StatusCode
}

func Test_PurchaseWithBankAccount(t *testing.T) {
	apps := startInProcess(t)
	bankApp, coinApp := apps[bank.ConsumerGroup], apps[coin.ConsumerGroup]

	var acc bank.Account
	require.Equal(t, fiber.StatusCreated, call(t, bankApp, http.MethodPost, "/v1/accounts", map[string]any{
		"customer_id":            "cust-1",
		"kind":                   "SAVINGS",
		"currency":               "PEN",
		"max_fee_free_movements": 10,
		"commission_fee":         "1",
		"savings":                map[string]any{"monthly_movement_limit": 20},
	}, &acc))
	require.Equal(t, fiber.StatusCreated, call(t, bankApp, http.MethodPost, "/v1/accounts/"+acc.Number+"/deposit",
		map[string]string{"amount": "100", "currency": "PEN"}, nil))

	var w coin.Wallet
	require.Equal(t, fiber.StatusCreated, call(t, coinApp, http.MethodPost, "/v1/wallets", map[string]string{"owner_name": "Ada"}, &w))
	require.Equal(t, fiber.StatusCreated, call(t, coinApp, http.MethodPost, "/v1/rates", map[string]string{"buy_rate": "3.5", "sell_rate": "4"}, nil))

	var ticket coin.Ticket
	require.Equal(t, fiber.StatusAccepted, call(t, coinApp, http.MethodPost, "/v1/wallets/"+w.ID.String()+"/purchase", map[string]any{
		"coin_amount":    "5",
		"payment_method": map[string]string{"type": "BANK_ACCOUNT", "id": acc.Number},
	}, &ticket))

	require.Eventually(t, func() bool {
		var got coin.Wallet
		call(t, coinApp, http.MethodGet, "/v1/wallets/"+w.ID.String(), nil, &got)
		return got.Balance.String() == "5"
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		var inst struct {
			Status string `json:"status"`
		}
		call(t, coinApp, http.MethodGet, "/v1/sagas/"+ticket.SagaID.String(), nil, &inst)
		return inst.Status == "SUCCEEDED"
	}, 5*time.Second, 20*time.Millisecond)

	var after bank.Account
	call(t, bankApp, http.MethodGet, "/v1/accounts/"+acc.Number, nil, &after)
	require.Equal(t, "80", after.Balance.String())
}

func Test_PhoneWalletCardAssociation(t *testing.T) {
	apps := startInProcess(t)
	bankApp, phoneApp := apps[bank.ConsumerGroup], apps[phone.ConsumerGroup]

	var acc bank.Account
	require.Equal(t, fiber.StatusCreated, call(t, bankApp, http.MethodPost, "/v1/accounts", map[string]any{
		"customer_id": "cust-1",
		"kind":        "CHECKING",
		"currency":    "PEN",
		"checking":    map[string]any{"holders": []string{"cust-1"}, "maintenance_fee": "0"},
	}, &acc))
	var card bank.DebitCard
	require.Equal(t, fiber.StatusCreated, call(t, bankApp, http.MethodPost, "/v1/cards", map[string]any{"main_account": acc.Number}, &card))

	var w phone.Wallet
	require.Equal(t, fiber.StatusCreated, call(t, phoneApp, http.MethodPost, "/v1/phone-wallets",
		map[string]string{"phone_number": "987654321", "owner_name": "Ada"}, &w))
	require.Equal(t, fiber.StatusAccepted, call(t, phoneApp, http.MethodPost, "/v1/phone-wallets/"+w.ID.String()+"/card",
		map[string]string{"card_number": card.Number}, nil))

	require.Eventually(t, func() bool {
		var got phone.Wallet
		call(t, phoneApp, http.MethodGet, "/v1/phone-wallets/"+w.ID.String(), nil, &got)
		return got.Status == phone.WalletActive && got.CardNumber != nil && *got.CardNumber == card.Number
	}, 5*time.Second, 20*time.Millisecond)
}

func openAccount(t *testing.T, app *fiber.App, kind string, deposit string) bank.Account {
	t.Helper()
	req := map[string]any{
		"customer_id":            "cust-1",
		"kind":                   kind,
		"currency":               "PEN",
		"max_fee_free_movements": 10,
		"commission_fee":         "1",
	}
	switch kind {
	case "SAVINGS":
		req["savings"] = map[string]any{"monthly_movement_limit": 20}
	case "CHECKING":
		req["checking"] = map[string]any{"holders": []string{"cust-1"}, "maintenance_fee": "0"}
	}
	var acc bank.Account
	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/v1/accounts", req, &acc))
	require.Equal(t, fiber.StatusCreated, call(t, app, http.MethodPost, "/v1/accounts/"+acc.Number+"/deposit",
		map[string]string{"amount": deposit, "currency": "PEN"}, nil))
	return acc
}

func balanceOf(t *testing.T, app *fiber.App, number string) string {
	t.Helper()
	var acc bank.Account
	require.Equal(t, fiber.StatusOK, call(t, app, http.MethodGet, "/v1/accounts/"+number, nil, &acc))
	return acc.Balance.String()
}

func coinWallet(t *testing.T, app *fiber.App, id string) coin.Wallet {
	t.Helper()
	var w coin.Wallet
	require.Equal(t, fiber.StatusOK, call(t, app, http.MethodGet, "/v1/wallets/"+id, nil, &w))
	return w
}

func wait(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 20*time.Millisecond)
}

func sagaStatus(t *testing.T, app *fiber.App, id string) string {
	t.Helper()
	var inst struct {
		Status string `json:"status"`
	}
	call(t, app, http.MethodGet, "/v1/sagas/"+id, nil, &inst)
	return inst.Status
}

func Test_ExchangeAcrossServices(t *testing.T) {
	apps := startInProcess(t)
	bankApp, coinApp, phoneApp := apps[bank.ConsumerGroup], apps[coin.ConsumerGroup], apps[phone.ConsumerGroup]

	buyerAcc := openAccount(t, bankApp, "SAVINGS", "100")
	sellerAcc := openAccount(t, bankApp, "CHECKING", "100")
	var card bank.DebitCard
	require.Equal(t, fiber.StatusCreated, call(t, bankApp, http.MethodPost, "/v1/cards", map[string]any{"main_account": sellerAcc.Number}, &card))

	var sellerPhone phone.Wallet
	require.Equal(t, fiber.StatusCreated, call(t, phoneApp, http.MethodPost, "/v1/phone-wallets",
		map[string]string{"phone_number": "987654321", "owner_name": "Grace"}, &sellerPhone))

	require.Equal(t, fiber.StatusCreated, call(t, coinApp, http.MethodPost, "/v1/rates", map[string]string{"buy_rate": "2", "sell_rate": "4"}, nil))
	var buyer, seller coin.Wallet
	require.Equal(t, fiber.StatusCreated, call(t, coinApp, http.MethodPost, "/v1/wallets", map[string]string{"owner_name": "Ada"}, &buyer))
	require.Equal(t, fiber.StatusCreated, call(t, coinApp, http.MethodPost, "/v1/wallets", map[string]string{"owner_name": "Grace"}, &seller))

	// The seller links the checking account and buys 5 coins with it.
	require.Equal(t, fiber.StatusAccepted, call(t, coinApp, http.MethodPost, "/v1/wallets/"+seller.ID.String()+"/bank-account",
		map[string]string{"account_number": sellerAcc.Number}, nil))
	wait(t, func() bool { return coinWallet(t, coinApp, seller.ID.String()).Status == coin.WalletActive })
	require.Equal(t, fiber.StatusAccepted, call(t, coinApp, http.MethodPost, "/v1/wallets/"+seller.ID.String()+"/purchase", map[string]any{
		"coin_amount":    "5",
		"payment_method": map[string]string{"type": "BANK_ACCOUNT", "id": sellerAcc.Number},
	}, nil))
	wait(t, func() bool { return coinWallet(t, coinApp, seller.ID.String()).Balance.String() == "5" })
	require.Equal(t, "80", balanceOf(t, bankApp, sellerAcc.Number))

	var petition coin.Petition
	require.Equal(t, fiber.StatusCreated, call(t, coinApp, http.MethodPost, "/v1/petitions", map[string]any{
		"buyer_wallet_id":      buyer.ID,
		"seller_wallet_id":     seller.ID,
		"coin_amount":          "5",
		"buyer_payment_method": map[string]string{"type": "BANK_ACCOUNT", "id": buyerAcc.Number},
	}, &petition))
	sellerMethod := map[string]any{"seller_payment_method": map[string]string{"type": "PHONE_WALLET", "id": "987654321"}}
	petitionPath := "/v1/petitions/" + petition.ID.String()

	t.Run("fail, seller phone wallet has no card", func(t *testing.T) {
		var ticket coin.Ticket
		require.Equal(t, fiber.StatusAccepted, call(t, coinApp, http.MethodPost, petitionPath+"/accept", sellerMethod, &ticket))
		wait(t, func() bool { return sagaStatus(t, coinApp, ticket.SagaID.String()) == "FAILED" })

		var got coin.Petition
		require.Equal(t, fiber.StatusOK, call(t, coinApp, http.MethodGet, petitionPath, nil, &got))
		require.Equal(t, coin.PetitionPending, got.Status)
		require.Nil(t, got.ActiveSagaID)
		require.Equal(t, 1, got.FailedAttempts)
		require.NotEmpty(t, got.LastFailureReason)

		require.Equal(t, "0", coinWallet(t, coinApp, buyer.ID.String()).Balance.String())
		s := coinWallet(t, coinApp, seller.ID.String())
		require.Equal(t, "5", s.Balance.String())
		require.True(t, s.Reserved.IsZero())
		require.Equal(t, "100", balanceOf(t, bankApp, buyerAcc.Number))
		require.Equal(t, "80", balanceOf(t, bankApp, sellerAcc.Number))
	})

	t.Run("ok, settles once the card is associated", func(t *testing.T) {
		require.Equal(t, fiber.StatusAccepted, call(t, phoneApp, http.MethodPost, "/v1/phone-wallets/"+sellerPhone.ID.String()+"/card",
			map[string]string{"card_number": card.Number}, nil))
		wait(t, func() bool {
			var got phone.Wallet
			call(t, phoneApp, http.MethodGet, "/v1/phone-wallets/"+sellerPhone.ID.String(), nil, &got)
			return got.Status == phone.WalletActive
		})

		var ticket coin.Ticket
		require.Equal(t, fiber.StatusAccepted, call(t, coinApp, http.MethodPost, petitionPath+"/accept", sellerMethod, &ticket))
		require.Equal(t, "10", ticket.PaymentAmount.String())
		wait(t, func() bool { return sagaStatus(t, coinApp, ticket.SagaID.String()) == "SUCCEEDED" })

		var got coin.Petition
		require.Equal(t, fiber.StatusOK, call(t, coinApp, http.MethodGet, petitionPath, nil, &got))
		require.Equal(t, coin.PetitionAccepted, got.Status)

		require.Equal(t, "5", coinWallet(t, coinApp, buyer.ID.String()).Balance.String())
		require.Equal(t, "0", coinWallet(t, coinApp, seller.ID.String()).Balance.String())
		require.Equal(t, "90", balanceOf(t, bankApp, buyerAcc.Number))
		require.Equal(t, "90", balanceOf(t, bankApp, sellerAcc.Number))

		var buyerRows, sellerRows []map[string]any
		require.Equal(t, fiber.StatusOK, call(t, coinApp, http.MethodGet, "/v1/wallets/"+buyer.ID.String()+"/transactions", nil, &buyerRows))
		require.Len(t, buyerRows, 1)
		require.Equal(t, "CREDIT", buyerRows[0]["type"])
		require.Equal(t, fiber.StatusOK, call(t, coinApp, http.MethodGet, "/v1/wallets/"+seller.ID.String()+"/transactions", nil, &sellerRows))
		require.Len(t, sellerRows, 2)
		require.Equal(t, "DEBIT", sellerRows[1]["type"])

		var buyerBank, sellerBank []map[string]any
		require.Equal(t, fiber.StatusOK, call(t, bankApp, http.MethodGet, "/v1/accounts/"+buyerAcc.Number+"/transactions", nil, &buyerBank))
		require.Len(t, buyerBank, 2)
		require.Equal(t, fiber.StatusOK, call(t, bankApp, http.MethodGet, "/v1/accounts/"+sellerAcc.Number+"/transactions", nil, &sellerBank))
		require.Len(t, sellerBank, 3)

		wait(t, func() bool {
			var rows []map[string]any
			call(t, phoneApp, http.MethodGet, "/v1/phone-wallets/"+sellerPhone.ID.String()+"/movements", nil, &rows)
			return len(rows) == 1
		})
	})
}
