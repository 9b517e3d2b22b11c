package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MovementResetter clears the monthly movement counters of every account.
type MovementResetter interface {
	ResetMonthlyMovements(ctx context.Context) (int64, error)
}

// StartMonthlyReset runs resetter at the first instant of every calendar
// month in loc until ctx is cancelled.
func StartMonthlyReset(ctx context.Context, resetter MovementResetter, loc *time.Location, logger *slog.Logger) {
	go func() {
		for {
			wait := time.Until(NextMonthStart(time.Now(), loc))
			logger.Info("monthly movement reset scheduled", "in", wait.Round(time.Second))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			exp := backoff.NewExponentialBackOff()
			exp.InitialInterval = time.Second
			exp.MaxElapsedTime = time.Hour
			n, err := ResetWithRetry(ctx, resetter, exp, logger)
			if err != nil {
				logger.Error("monthly movement reset abandoned", "error", err)
				continue
			}
			logger.Info("monthly movement counters reset", "accounts", n)
		}
	}()
}

// ResetWithRetry calls resetter until it succeeds, b stops, or ctx ends.
func ResetWithRetry(ctx context.Context, resetter MovementResetter, b backoff.BackOff, logger *slog.Logger) (int64, error) {
	var n int64
	err := backoff.RetryNotify(func() error {
		var err error
		n, err = resetter.ResetMonthlyMovements(ctx)
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logger.Warn("monthly movement reset failed, retrying", "in", wait, "error", err)
	})
	return n, err
}

// NextMonthStart returns midnight of the first day of the month after now.
func NextMonthStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month()+1, 1, 0, 0, 0, 0, loc)
}
