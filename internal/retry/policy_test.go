package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	var delays []time.Duration
	p := Policy{
		MaxAttempts: 4,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Retryable:   func(err error) bool { return errors.Is(err, errFlaky) },
		Sleep:       recordingSleep(&delays),
	}
	calls := 0
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(delays) != len(want) || delays[0] != want[0] || delays[1] != want[1] {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	p := Policy{MaxAttempts: 5, Retryable: func(err error) bool { return errors.Is(err, errFlaky) }}
	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("got err=%v calls=%d, want fatal after 1 call", err, calls)
	}
}

func TestDoHonorsAttemptBudget(t *testing.T) {
	var delays []time.Duration
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Retryable:   func(error) bool { return true },
		Sleep:       recordingSleep(&delays),
	}
	calls := 0
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 || len(delays) != 2 {
		t.Fatalf("calls=%d sleeps=%d, want 3 and 2", calls, len(delays))
	}
}

func TestDoStopsWhenContextCanceledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Retryable:   func(error) bool { return true },
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}
	calls := 0
	err := p.Do(ctx, func(context.Context, int) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, errFlaky) {
		t.Fatalf("expected canceled wrapping last error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDelayCurve(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tc := range tests {
		if got := p.Delay(tc.attempt, nil); got != tc.want {
			t.Fatalf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestDelayUsesCappedHint(t *testing.T) {
	p := Policy{
		BaseDelay: time.Second,
		MaxDelay:  3 * time.Second,
		Hint:      func(error) (time.Duration, bool) { return 30 * time.Second, true },
	}
	if got := p.Delay(1, errFlaky); got != 3*time.Second {
		t.Fatalf("Delay with hint = %v, want 3s", got)
	}
}

func TestZeroBaseDelayDisablesWaiting(t *testing.T) {
	p := Policy{BaseDelay: 0}
	if got := p.Delay(3, errFlaky); got != 0 {
		t.Fatalf("Delay = %v, want 0", got)
	}
}
