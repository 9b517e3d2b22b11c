package saga

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxFailed  OutboxStatus = "FAILED"
)

// OutboxRecord is a queued envelope waiting for the relay. Attempts counts
// claims, including the one that returned it.
type OutboxRecord struct {
	Envelope  messaging.Envelope
	Attempts  int
	NextRunAt time.Time
}

// Outbox is the relay's view of queued envelopes.
type Outbox interface {
	// ClaimPending returns up to limit due records in creation order and
	// pushes their next run past lease so a crashed relay's claims return.
	// Claiming does not count as an attempt.
	ClaimPending(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	// MarkRetry and MarkFailed record one failed publish.
	MarkRetry(ctx context.Context, id uuid.UUID, nextRunAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
