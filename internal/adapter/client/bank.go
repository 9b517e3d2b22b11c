package client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/core/config"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// BankClient calls the bank-account service.
type BankClient struct {
	http *HTTPClient
}

func NewBankClient(baseURL string, cfg config.Breaker, logger *slog.Logger) *BankClient {
	return &BankClient{http: NewHTTPClient("bank-account-service", baseURL, cfg, logger)}
}

// CardTransferRequest is the body of POST /v1/cards/transfer.
type CardTransferRequest struct {
	FromCard string          `json:"from_card"`
	ToCard   string          `json:"to_card"`
	Amount   decimal.Decimal `json:"amount"`
}

// CardTransfer books a card-to-card transfer. ref is sent as the
// Idempotency-Key, so a repeated ref gets the first debit back.
func (c *BankClient) CardTransfer(ctx context.Context, ref, fromCard, toCard string, amount decimal.Decimal) (domain.Transaction, error) {
	var debit domain.Transaction
	req := CardTransferRequest{FromCard: fromCard, ToCard: toCard, Amount: amount}
	if err := c.http.DoIdempotent(ctx, http.MethodPost, "/v1/cards/transfer", ref, req, &debit); err != nil {
		return domain.Transaction{}, err
	}
	return debit, nil
}
