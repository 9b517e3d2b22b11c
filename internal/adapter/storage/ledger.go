package storage

import (
	"context"
	"fmt"

	"github.com/ibrahimkeyboad/gosettle/internal/core/domain"
)

// Each service keeps its transaction log in its own table with the same
// shape.
const (
	bankLedger  = "bank_transactions"
	coinLedger  = "coin_transactions"
	phoneLedger = "phone_movements"
)

func appendTransaction(ctx context.Context, q querier, table string, t domain.Transaction) error {
	_, err := q.Exec(ctx, `
		INSERT INTO `+table+` (id, reference, amount, fee, type, related_credit_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Reference, t.Amount, t.Fee, string(t.Type), t.RelatedCreditID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append %s row: %w", table, err)
	}
	return nil
}

// history lists a reference's rows oldest first.
func history(ctx context.Context, q querier, table, reference string) ([]domain.Transaction, error) {
	rows, err := q.Query(ctx, `
		SELECT id, reference, amount, fee, type, related_credit_id, created_at
		FROM `+table+`
		WHERE reference = $1
		ORDER BY created_at ASC, id ASC`, reference)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		var (
			t   domain.Transaction
			typ string
		)
		if err := rows.Scan(&t.ID, &t.Reference, &t.Amount, &t.Fee, &typ, &t.RelatedCreditID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		t.Type = domain.TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}
