package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func immediate(p Policy, waits *[]time.Duration) Policy {
	p.sleep = func(_ context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return nil
	}
	return p
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	p := immediate(DefaultPolicy(nil), nil)

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("still down")
	p := immediate(DefaultPolicy(nil), nil)

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("exhausted error should wrap the last failure, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	rejected := errors.New("content policy")
	calls := 0
	p := immediate(DefaultPolicy(func(err error) bool {
		return !errors.Is(err, rejected)
	}), nil)

	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on rejection)", calls)
	}
}

func TestDoBackoffSchedule(t *testing.T) {
	var waits []time.Duration
	p := immediate(DefaultPolicy(nil), &waits)

	_ = p.Do(context.Background(), func(context.Context) error {
		return errors.New("always")
	})

	want := []time.Duration{4 * time.Second, 8 * time.Second}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy(nil)
	p.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := p.Do(ctx, func(context.Context) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
