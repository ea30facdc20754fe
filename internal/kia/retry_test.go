package kia

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecuteWithRetry_SucceedsAfterRetryableFailures(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		MaxDelay:  10 * time.Millisecond,
		SleepFn:   func(time.Duration) {},
		RandFn:    func(lo, hi float64) float64 { return lo },
	}
	result, err := ExecuteWithRetry(policy, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewError("KIA_UPSTREAM_UNAVAILABLE", "retry me", true, nil)
		}
		return "ok", nil
	}, func(err error, attempt int) bool {
		kerr, ok := AsKiaError(err)
		return ok && kerr.Retryable
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_StopsOnNonRetryable(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{Attempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, SleepFn: func(time.Duration) {}, RandFn: func(lo, hi float64) float64 { return lo }}
	_, err := ExecuteWithRetry(policy, func() (string, error) {
		attempts++
		return "", NewError("KIA_AUTH_FORBIDDEN", "no retry", false, nil)
	}, func(err error, attempt int) bool {
		kerr, ok := AsKiaError(err)
		return ok && kerr.Retryable
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestExecuteWithRetry_GenericErrorPropagates(t *testing.T) {
	policy := RetryPolicy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, SleepFn: func(time.Duration) {}}
	_, err := ExecuteWithRetry(policy, func() (int, error) {
		return 0, errors.New("boom")
	}, func(err error, attempt int) bool { return false })
	assert.EqualError(t, err, "boom")
}

func TestTokenProvider_CoalescesConcurrentRefresh(t *testing.T) {
	var issued int
	tp := NewTokenProvider(func(mode Mode) (AccessToken, error) {
		issued++
		now := time.Now().UTC()
		return AccessToken{Token: "t", IssuedAt: now, ExpiresAt: now.Add(time.Hour), RefreshAt: now.Add(time.Hour), Mode: mode}, nil
	})

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			_, _ = tp.GetValidToken(ModeLive)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, 1, issued)
}

func TestTokenProvider_InvalidateForcesReissue(t *testing.T) {
	var issued int
	tp := NewTokenProvider(func(mode Mode) (AccessToken, error) {
		issued++
		now := time.Now().UTC()
		return AccessToken{Token: "t", IssuedAt: now, ExpiresAt: now.Add(time.Hour), RefreshAt: now.Add(time.Hour), Mode: mode}, nil
	})
	_, _ = tp.GetValidToken(ModeMock)
	tp.Invalidate(ModeMock)
	_, _ = tp.GetValidToken(ModeMock)
	assert.Equal(t, 2, issued)
}
