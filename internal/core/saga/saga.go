// Package saga keeps the durable side of the settlement choreography: the
// per-instance state record, the consumed-message dedup set and the
// transactional outbox each step writes into.
package saga

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
)

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
)

// Instance is the last known state of one saga as seen by a service.
type Instance struct {
	ID        uuid.UUID          `json:"id"`
	Workflow  messaging.Workflow `json:"workflow"`
	Step      messaging.Topic    `json:"step"`
	Status    Status             `json:"status"`
	Payload   []byte             `json:"payload"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Journal is the saga bookkeeping available inside a store transaction. All
// three calls commit or roll back together with the ledger mutation.
type Journal interface {
	// MarkProcessed records key and reports whether it was already there.
	MarkProcessed(ctx context.Context, key string) (bool, error)
	Enqueue(ctx context.Context, env messaging.Envelope) error
	Record(ctx context.Context, inst Instance) error
}

type Reader interface {
	Instance(ctx context.Context, id uuid.UUID) (Instance, error)
}

// Seen marks env as consumed by group and reports whether a previous
// delivery already did the work.
func Seen(ctx context.Context, j Journal, group string, env messaging.Envelope, logger *slog.Logger) (bool, error) {
	done, err := j.MarkProcessed(ctx, env.DedupKey(group))
	if err != nil {
		return false, err
	}
	if done {
		logger.Info("skipping redelivered message", "topic", env.Topic, "saga_id", env.SagaID, "message_id", env.ID)
	}
	return done, nil
}

// Start opens a new saga instance by queueing its first message.
func Start(ctx context.Context, j Journal, codec messaging.Codec, workflow messaging.Workflow, topic messaging.Topic, key string, payload any, now time.Time) (uuid.UUID, error) {
	sagaID := uuid.New()
	env, err := messaging.NewEnvelope(codec, sagaID, workflow, topic, key, payload, now)
	if err != nil {
		return uuid.Nil, err
	}
	if err := queue(ctx, j, env, StatusInProgress); err != nil {
		return uuid.Nil, err
	}
	return sagaID, nil
}

// Emit queues the next step of the saga parent belongs to.
func Emit(ctx context.Context, j Journal, codec messaging.Codec, parent messaging.Envelope, topic messaging.Topic, key string, payload any, status Status, now time.Time) error {
	env, err := messaging.NewEnvelope(codec, parent.SagaID, parent.Workflow, topic, key, payload, now)
	if err != nil {
		return err
	}
	return queue(ctx, j, env, status)
}

// Conclude records the terminal state reached by consuming env.
func Conclude(ctx context.Context, j Journal, env messaging.Envelope, status Status, now time.Time) error {
	return j.Record(ctx, Instance{
		ID:        env.SagaID,
		Workflow:  env.Workflow,
		Step:      env.Topic,
		Status:    status,
		Payload:   env.Payload,
		UpdatedAt: now,
	})
}

func queue(ctx context.Context, j Journal, env messaging.Envelope, status Status) error {
	if err := j.Enqueue(ctx, env); err != nil {
		return err
	}
	return j.Record(ctx, Instance{
		ID:        env.SagaID,
		Workflow:  env.Workflow,
		Step:      env.Topic,
		Status:    status,
		Payload:   env.Payload,
		UpdatedAt: env.CreatedAt,
	})
}
