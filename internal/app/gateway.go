package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/gosettle/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/gosettle/internal/core/bank"
	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// engineGateway serves phone payments from the in-process bank engine. A
// repeated ref returns the debit booked the first time.
type engineGateway struct {
	engine *bank.Engine
	booked middleware.IdempotencyStore
	logger *slog.Logger
}

func (g engineGateway) CardTransfer(ctx context.Context, ref, fromCard, toCard string, amount decimal.Decimal) (domain.Transaction, error) {
	if ref == "" {
		return g.engine.CardTransfer(ctx, fromCard, toCard, amount)
	}
	_, body, found, err := g.booked.Lookup(ctx, ref)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: card transfer %s: %v", domain.ErrServiceUnavailable, ref, err)
	}
	if found {
		var debit domain.Transaction
		if err := json.Unmarshal(body, &debit); err != nil {
			return domain.Transaction{}, fmt.Errorf("decode booked card transfer %s: %w", ref, err)
		}
		g.logger.Info("card transfer replayed", "ref", ref, "debit", debit.ID)
		return debit, nil
	}

	debit, err := g.engine.CardTransfer(ctx, fromCard, toCard, amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	body, err = json.Marshal(debit)
	if err == nil {
		err = g.booked.Save(ctx, ref, http.StatusCreated, body)
	}
	if err != nil {
		g.logger.Error("card transfer booked but not remembered", "ref", ref, "error", err)
	}
	return debit, nil
}
