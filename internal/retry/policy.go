package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds an unreliable call: a fixed number of attempts with
// exponential waits between them and a predicate deciding which errors are
// worth another try. Non-retryable errors return immediately without
// consuming the remaining budget.
type Policy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64

	// Retryable reports whether the error is transient. Nil retries everything.
	Retryable func(error) bool

	// sleep is swapped out by tests.
	sleep func(context.Context, time.Duration) error
}

// DefaultPolicy mirrors the generation provider's budget: three attempts with
// waits of 4s then 8s, capped at 10s.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		InitialWait: 4 * time.Second,
		MaxWait:     10 * time.Second,
		Multiplier:  2,
		Retryable:   retryable,
	}
}

// Do invokes fn until it succeeds, fails non-retryably, or the attempt budget
// runs out. The last error is wrapped so callers can still classify it with
// errors.Is / errors.As.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = p.InitialWait
	schedule.MaxInterval = p.MaxWait
	schedule.Multiplier = p.Multiplier
	schedule.RandomizationFactor = 0
	schedule.MaxElapsedTime = 0
	schedule.Reset()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		if err := p.wait(ctx, wait); err != nil {
			return err
		}
	}
	return fmt.Errorf("retry: %d attempts exhausted: %w", attempts, lastErr)
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
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
