package kia

import (
	"math/rand"
	"time"
)

// RetryPolicy is exponential backoff with up to 0.1s of added jitter,
// matching the attempts/base/max shape used throughout the original system.
type RetryPolicy struct {
	Attempts        int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	SleepFn         func(time.Duration)
	RandFn          func(lo, hi float64) float64
}

// DefaultRetryPolicy mirrors the broker client's default tuning.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  2 * time.Second,
		SleepFn:   time.Sleep,
		RandFn:    func(lo, hi float64) float64 { return lo + rand.Float64()*(hi-lo) },
	}
}

// ExecuteWithRetry runs operation, retrying on errors for which shouldRetry
// returns true, up to p.Attempts times, sleeping base*2^(attempt-1) capped
// at MaxDelay plus up to 0.1s of jitter between attempts.
func ExecuteWithRetry[T any](p RetryPolicy, operation func() (T, error), shouldRetry func(err error, attempt int) bool) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleepFn := p.SleepFn
	if sleepFn == nil {
		sleepFn = time.Sleep
	}
	randFn := p.RandFn
	if randFn == nil {
		randFn = func(lo, hi float64) float64 { return lo + rand.Float64()*(hi-lo) }
	}

	var lastErr error
	var zero T
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt >= attempts || !shouldRetry(err, attempt) {
			return zero, err
		}
		delay := p.BaseDelay * time.Duration(1<<uint(attempt-1))
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		jitter := time.Duration(randFn(0, 0.1) * float64(time.Second))
		sleepFn(delay + jitter)
	}
	return zero, lastErr
}
