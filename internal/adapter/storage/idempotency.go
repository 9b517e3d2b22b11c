package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore caches HTTP responses by Idempotency-Key, scoped per
// service.
type IdempotencyStore struct {
	Db      *pgxpool.Pool
	service string
}

func NewIdempotencyStore(db *pgxpool.Pool, service string) *IdempotencyStore {
	return &IdempotencyStore{Db: db, service: service}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (int, []byte, bool, error) {
	var (
		status int
		body   []byte
	)
	err := s.Db.QueryRow(ctx,
		"SELECT response_status, response_body FROM idempotency_keys WHERE service = $1 AND key_id = $2",
		s.service, key).Scan(&status, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return status, body, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, key string, status int, body []byte) error {
	_, err := s.Db.Exec(ctx,
		"INSERT INTO idempotency_keys (service, key_id, response_status, response_body) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING",
		s.service, key, status, body)
	if err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}
