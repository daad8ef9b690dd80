package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func TestDoStopsOnFirstSuccess(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	ok, err := Policy{Attempts: 20, Delay: 1500 * time.Millisecond, Sleep: rec.sleep}.Do(context.Background(), func(attempt int) bool {
		calls++
		return attempt == 3
	})
	if err != nil || !ok {
		t.Fatalf("Do() = %v, %v", ok, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(rec.delays) != 2 || rec.delays[0] != 1500*time.Millisecond {
		t.Fatalf("delays = %v", rec.delays)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	rec := &sleepRecorder{}
	var retried []int
	calls := 0
	ok, err := Policy{Attempts: 6, Delay: 2 * time.Second, Sleep: rec.sleep, OnRetry: func(n int) { retried = append(retried, n) }}.
		Do(context.Background(), func(int) bool {
			calls++
			return false
		})
	if err != nil || ok {
		t.Fatalf("Do() = %v, %v", ok, err)
	}
	if calls != 6 {
		t.Fatalf("calls = %d, want 6", calls)
	}
	if len(rec.delays) != 5 || len(retried) != 5 || retried[4] != 5 {
		t.Fatalf("delays = %v retried = %v", rec.delays, retried)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	ok, err := Policy{Attempts: 5}.Do(ctx, func(int) bool {
		calls++
		cancel()
		return false
	})
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, %v", ok, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() = %v", err)
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("Sleep(0) = %v", err)
	}
}

func TestDoConstantBackOff(t *testing.T) {
	var retried []int
	start := time.Now()
	ok, err := Policy{Attempts: 3, Delay: 5 * time.Millisecond, OnRetry: func(n int) { retried = append(retried, n) }}.
		Do(context.Background(), func(attempt int) bool {
			return attempt == 3
		})
	if err != nil || !ok {
		t.Fatalf("Do() = %v, %v", ok, err)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Fatalf("retried = %v", retried)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("elapsed = %v, want at least two delays", elapsed)
	}
}

func TestDoStopsWhenSleepFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	ok, err := Policy{Attempts: 5, Delay: time.Second, Sleep: func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}}.Do(ctx, func(int) bool {
		calls++
		return false
	})
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, %v", ok, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoSkipsWhenAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	ok, err := Policy{Attempts: 3}.Do(ctx, func(int) bool {
		calls++
		return true
	})
	if ok || !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("Do() = %v, %v after %d calls", ok, err, calls)
	}
}
