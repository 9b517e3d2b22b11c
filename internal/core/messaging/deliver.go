package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a failing handler is re-run for one message.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.MaxElapsedTime = 0

	var b backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Drop marks err as permanent: the message is logged and discarded.
func Drop(err error) error {
	return backoff.Permanent(err)
}

// IsDropped reports whether err was marked with Drop.
func IsDropped(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

// Deliver runs h until it succeeds, the error is dropped, or the policy is
// exhausted. A message that never succeeds is logged and discarded; there is
// no dead-letter channel.
func Deliver(ctx context.Context, h Handler, env Envelope, policy RetryPolicy, logger *slog.Logger) error {
	attempts := 0
	dropped := false
	err := backoff.Retry(func() error {
		attempts++
		err := h(ctx, env)
		if err != nil && IsDropped(err) {
			dropped = true
		}
		return err
	}, policy.backOff(ctx))
	if err == nil {
		return nil
	}

	if dropped {
		logger.Warn("dropping malformed message",
			"topic", env.Topic, "message_id", env.ID, "saga_id", env.SagaID, "error", err)
	} else {
		logger.Error("dropping message after retries",
			"topic", env.Topic, "message_id", env.ID, "saga_id", env.SagaID, "attempts", attempts, "error", err)
	}
	return err
}
