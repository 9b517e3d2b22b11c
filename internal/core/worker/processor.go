package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ibrahimkeyboad/gosettle/internal/core/messaging"
	"github.com/ibrahimkeyboad/gosettle/internal/core/saga"
)

type RelayConfig struct {
	PollInterval time.Duration
	Lease        time.Duration
	RetryStep    time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Relay moves envelopes from a service's outbox onto the fabric.
type Relay struct {
	outbox    saga.Outbox
	publisher messaging.Publisher
	cfg       RelayConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewRelay(outbox saga.Outbox, publisher messaging.Publisher, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if cfg.RetryStep <= 0 {
		cfg.RetryStep = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time provider.
func (r *Relay) WithClock(nowFn func() time.Time) {
	r.now = nowFn
}

// Start runs the relay loop in the background until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	go func() {
		r.logger.Info("👷 outbox relay started", "interval", r.cfg.PollInterval)
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()
		for {
			r.ProcessBatch(ctx)
			select {
			case <-ctx.Done():
				r.logger.Info("outbox relay stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

// ProcessBatch publishes one batch of due envelopes and returns how many
// were sent. It stops at the first publish failure so later envelopes do
// not overtake it.
func (r *Relay) ProcessBatch(ctx context.Context) int {
	now := r.now()
	records, err := r.outbox.ClaimPending(ctx, now, r.cfg.Lease, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("failed to claim outbox messages", "error", err)
		return 0
	}

	sent := 0
	for _, rec := range records {
		env := rec.Envelope
		if err := r.publisher.Publish(ctx, env); err != nil {
			r.handleFailure(ctx, rec, now, err)
			break
		}
		if err := r.outbox.MarkSent(ctx, env.ID); err != nil {
			r.logger.Error("failed to mark outbox message sent", "message_id", env.ID, "error", err)
			break
		}
		r.logger.Debug("published saga step", "topic", env.Topic, "saga_id", env.SagaID, "message_id", env.ID)
		sent++
	}
	return sent
}

func (r *Relay) handleFailure(ctx context.Context, rec saga.OutboxRecord, now time.Time, cause error) {
	env := rec.Envelope
	attempts := rec.Attempts + 1
	r.logger.Error("publish failed", "topic", env.Topic, "message_id", env.ID, "attempts", attempts, "error", cause)

	if attempts >= r.cfg.MaxAttempts {
		if err := r.outbox.MarkFailed(ctx, env.ID); err != nil {
			r.logger.Error("failed to mark outbox message failed", "message_id", env.ID, "error", err)
			return
		}
		r.logger.Error("outbox message marked FAILED (max attempts reached)", "message_id", env.ID, "saga_id", env.SagaID)
		return
	}

	nextRun := now.Add(r.retryDelay(attempts))
	if err := r.outbox.MarkRetry(ctx, env.ID, nextRun); err != nil {
		r.logger.Error("failed to schedule outbox retry", "message_id", env.ID, "error", err)
		return
	}
	r.logger.Info("scheduled outbox retry", "message_id", env.ID, "next_run", nextRun)
}

// retryDelay grows with each failed attempt but never passes the lease, so
// the rows leased behind a failed one cannot become due before it.
func (r *Relay) retryDelay(attempts int) time.Duration {
	return min(time.Duration(attempts)*r.cfg.RetryStep, r.cfg.Lease)
}
