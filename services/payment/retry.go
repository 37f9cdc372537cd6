package payment

import (
	"context"
	"time"
)

// Sleeper waits between retry attempts. Tests replace it to avoid real delays.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy controls RetryWithBackoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      int
	Sleeper     Sleeper
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		Factor:      2,
		Sleeper:     realSleeper{},
	}
}

// RetryWithBackoff calls op until it succeeds, returns a non-retriable
// error, or MaxAttempts is reached. Only IsRetriable errors are retried.
func RetryWithBackoff[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Factor < 1 {
		policy.Factor = 1
	}
	if policy.Sleeper == nil {
		policy.Sleeper = realSleeper{}
	}

	var (
		zero    T
		lastErr error
		delay   = policy.BaseDelay
	)
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		val, err := op(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err
		if !IsRetriable(err) || attempt == policy.MaxAttempts {
			break
		}
		if err := policy.Sleeper.Sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay *= time.Duration(policy.Factor)
	}
	return zero, lastErr
}
