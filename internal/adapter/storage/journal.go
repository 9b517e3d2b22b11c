package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

// journal implements saga.Journal on an open transaction. service scopes
// saga instances and outbox rows when several services share a database.
type journal struct {
	tx      pgx.Tx
	service string
}

func (j journal) MarkProcessed(ctx context.Context, key string) (bool, error) {
	tag, err := j.tx.Exec(ctx, `
		INSERT INTO processed_messages (dedup_key) VALUES ($1)
		ON CONFLICT (dedup_key) DO NOTHING`, key)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return tag.RowsAffected() == 0, nil
}

func (j journal) Enqueue(ctx context.Context, env messaging.Envelope) error {
	_, err := j.tx.Exec(ctx, `
		INSERT INTO outbox (id, service, saga_id, workflow, topic, key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		env.ID, j.service, env.SagaID, string(env.Workflow), string(env.Topic), env.Key, env.Payload, env.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", env.Topic, err)
	}
	return nil
}

func (j journal) Record(ctx context.Context, inst saga.Instance) error {
	_, err := j.tx.Exec(ctx, `
		INSERT INTO saga_instances (service, id, workflow, step, status, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (service, id) DO UPDATE
		SET step = EXCLUDED.step, status = EXCLUDED.status,
		    payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		j.service, inst.ID, string(inst.Workflow), string(inst.Step), string(inst.Status), inst.Payload, inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("record saga %s: %w", inst.ID, err)
	}
	return nil
}

func sagaInstance(ctx context.Context, q querier, service string, id uuid.UUID) (saga.Instance, error) {
	var (
		inst                   saga.Instance
		workflow, step, status string
	)
	err := q.QueryRow(ctx, `
		SELECT id, workflow, step, status, payload, updated_at
		FROM saga_instances WHERE service = $1 AND id = $2`, service, id).
		Scan(&inst.ID, &workflow, &step, &status, &inst.Payload, &inst.UpdatedAt)
	if err != nil {
		return saga.Instance{}, wrapErr(err, "saga "+id.String())
	}
	inst.Workflow = messaging.Workflow(workflow)
	inst.Step = messaging.Topic(step)
	inst.Status = saga.Status(status)
	return inst, nil
}

// Outbox is the relay's view of one service's outbox rows.
type Outbox struct {
	pool    *pgxpool.Pool
	service string
}

func NewOutbox(pool *pgxpool.Pool, service string) *Outbox {
	return &Outbox{pool: pool, service: service}
}

// ClaimPending locks due rows with SKIP LOCKED so concurrent relays never
// claim the same row, then leases them by pushing next_run_at forward.
func (o *Outbox) ClaimPending(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]saga.OutboxRecord, error) {
	var claimed []saga.OutboxRecord
	err := runTx(ctx, o.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, saga_id, workflow, topic, key, payload, created_at, attempts
			FROM outbox
			WHERE service = $1 AND status = 'PENDING' AND next_run_at <= $2
			ORDER BY seq ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED`, o.service, now, limit)
		if err != nil {
			return fmt.Errorf("claim outbox: %w", err)
		}
		for rows.Next() {
			var (
				rec             saga.OutboxRecord
				workflow, topic string
			)
			env := &rec.Envelope
			if err := rows.Scan(&env.ID, &env.SagaID, &workflow, &topic, &env.Key, &env.Payload, &env.CreatedAt, &rec.Attempts); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox row: %w", err)
			}
			env.Workflow = messaging.Workflow(workflow)
			env.Topic = messaging.Topic(topic)
			rec.NextRunAt = now.Add(lease)
			claimed = append(claimed, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, rec := range claimed {
			if _, err := tx.Exec(ctx, `
				UPDATE outbox SET next_run_at = $2 WHERE id = $1`,
				rec.Envelope.ID, rec.NextRunAt); err != nil {
				return fmt.Errorf("lease outbox row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id uuid.UUID) error {
	return o.setStatus(ctx, id, saga.OutboxSent)
}

func (o *Outbox) MarkFailed(ctx context.Context, id uuid.UUID) error {
	tag, err := o.pool.Exec(ctx, `
		UPDATE outbox SET status = $2, attempts = attempts + 1 WHERE id = $1`, id, string(saga.OutboxFailed))
	return mustAffect(tag, err, "outbox message "+id.String())
}

func (o *Outbox) MarkRetry(ctx context.Context, id uuid.UUID, nextRunAt time.Time) error {
	tag, err := o.pool.Exec(ctx, `
		UPDATE outbox SET next_run_at = $2, attempts = attempts + 1 WHERE id = $1`, id, nextRunAt)
	return mustAffect(tag, err, "outbox message "+id.String())
}

func (o *Outbox) setStatus(ctx context.Context, id uuid.UUID, status saga.OutboxStatus) error {
	tag, err := o.pool.Exec(ctx, `UPDATE outbox SET status = $2 WHERE id = $1`, id, string(status))
	return mustAffect(tag, err, "outbox message "+id.String())
}
