package runner

import (
	"context"
	"fmt"
	"time"

	xerrors "github.com/bitswalk/xtc/src/common/errors"
	"github.com/bitswalk/xtc/src/xtc/toolchain"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds or policy.MaxRetries attempts have failed,
// sleeping policy.Delay between attempts. It returns ErrRetriesExhausted
// naming operation once the budget is spent. There is no delay after the
// last attempt.
func Do(ctx context.Context, policy toolchain.RetryPolicy, sleep SleepFunc, operation string, fn func(ctx context.Context) error) error {
	if sleep == nil {
		sleep = SleepContext
	}
	maxAttempts := policy.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled: %w", operation, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				log.Info("Operation succeeded after retry", "operation", operation, "attempt", attempt)
			}
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		log.Warn("Operation failed, retrying",
			"operation", operation,
			"attempt", fmt.Sprintf("%d/%d", attempt, maxAttempts),
			"retry_in", policy.Delay,
			"error", lastErr,
		)

		if err := sleep(ctx, policy.Delay); err != nil {
			return fmt.Errorf("%s cancelled: %w", operation, err)
		}
	}

	return xerrors.ErrRetriesExhausted.
		WithMessagef("%s failed %d times, check that the network is working", operation, maxAttempts).
		WithCause(lastErr)
}

// Retrier runs commands through a Runner under a retry policy.
// Only network-bound commands go through a Retrier.
type Retrier struct {
	runner Runner
	policy toolchain.RetryPolicy
	sleep  SleepFunc
}

// NewRetrier creates a Retrier. A nil sleep uses SleepContext.
func NewRetrier(runner Runner, policy toolchain.RetryPolicy, sleep SleepFunc) *Retrier {
	if sleep == nil {
		sleep = SleepContext
	}
	return &Retrier{runner: runner, policy: policy, sleep: sleep}
}

// Run executes cmd, retrying on failure
func (r *Retrier) Run(ctx context.Context, cmd Command) error {
	return Do(ctx, r.policy, r.sleep, cmd.String(), func(ctx context.Context) error {
		return r.runner.Run(ctx, cmd)
	})
}

// Policy returns the retry policy in effect
func (r *Retrier) Policy() toolchain.RetryPolicy {
	return r.policy
}
