package forge

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	defaultMaxAttemptsConstant    = 3
	defaultInitialBackoffConstant = 500 * time.Millisecond
	defaultMaxBackoffConstant     = 30 * time.Second
	defaultJitterFractionConstant = 0.25
)

// RetryPolicy bounds how transient forge failures are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64
}

// DefaultRetryPolicy returns the retry bounds used when none are configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    defaultMaxAttemptsConstant,
		InitialBackoff: defaultInitialBackoffConstant,
		MaxBackoff:     defaultMaxBackoffConstant,
		JitterFraction: defaultJitterFractionConstant,
	}
}

func (policy RetryPolicy) normalized() RetryPolicy {
	normalizedPolicy := policy
	if normalizedPolicy.MaxAttempts <= 0 {
		normalizedPolicy.MaxAttempts = defaultMaxAttemptsConstant
	}
	if normalizedPolicy.InitialBackoff <= 0 {
		normalizedPolicy.InitialBackoff = defaultInitialBackoffConstant
	}
	if normalizedPolicy.MaxBackoff <= 0 {
		normalizedPolicy.MaxBackoff = defaultMaxBackoffConstant
	}
	return normalizedPolicy
}

// backoffDelay computes the delay before the given retry attempt with jitter applied.
func (policy RetryPolicy) backoffDelay(attempt int) time.Duration {
	base := float64(policy.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(policy.MaxBackoff) {
		base = float64(policy.MaxBackoff)
	}
	jitter := base * policy.JitterFraction * (rand.Float64()*2 - 1)
	delay := time.Duration(base + jitter)
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Retry invokes operation until it succeeds, fails permanently, or the attempt bound is reached.
// Only failures reported retryable by IsRetryable trigger another attempt; conflicts never do.
func Retry(executionContext context.Context, policy RetryPolicy, operation func() error) error {
	normalizedPolicy := policy.normalized()

	var lastFailure error
	for attempt := 0; attempt < normalizedPolicy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if sleepError := sleepWithContext(executionContext, normalizedPolicy.backoffDelay(attempt-1)); sleepError != nil {
				return sleepError
			}
		}

		lastFailure = operation()
		if lastFailure == nil {
			return nil
		}
		if !IsRetryable(lastFailure) {
			return lastFailure
		}
	}

	return lastFailure
}

func sleepWithContext(executionContext context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
