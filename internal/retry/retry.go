// Package retry runs bounded fixed-interval retry loops on top of
// cenkalti/backoff. The platform's retry policies are flat delays.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Policy is a bounded fixed-interval retry.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	Delay    time.Duration
	// Sleep replaces the backoff timer. Nil uses a constant backoff.
	Sleep SleepFunc
	// OnRetry runs after a failed attempt when another one will follow.
	OnRetry func(failed int)
}

var errAttemptFailed = errors.New("retry: attempt failed")

// Do calls op with 1-based attempt numbers until it returns true or the
// attempts run out. It returns whether op succeeded, and ctx.Err() if the
// context ended first.
func (p Policy) Do(ctx context.Context, op func(attempt int) bool) (bool, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	attempt := 0
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff(ctx)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(error, time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(attempt)
			}
		}),
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		attempt++
		if op(attempt) {
			return struct{}{}, nil
		}
		return struct{}{}, errAttemptFailed
	}, opts...)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errAttemptFailed):
		if cerr := ctx.Err(); cerr != nil && attempt < attempts {
			return false, cerr
		}
		return false, nil
	default:
		return false, err
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	if p.Sleep == nil {
		return backoff.NewConstantBackOff(p.Delay)
	}
	return &sleepBackOff{ctx: ctx, delay: p.Delay, sleep: p.Sleep}
}

// sleepBackOff waits through a SleepFunc and hands backoff a zero interval.
// A failed wait stops the loop.
type sleepBackOff struct {
	ctx   context.Context
	delay time.Duration
	sleep SleepFunc
}

func (b *sleepBackOff) NextBackOff() time.Duration {
	if err := b.sleep(b.ctx, b.delay); err != nil {
		return backoff.Stop
	}
	return 0
}

func (b *sleepBackOff) Reset() {}
