package payment

import (
	"context"
	"math/rand"
	"time"
)

// maxJitter is added to every computed delay so a bank of terminals that
// failed together does not retry in lockstep.
const maxJitter = 500 * time.Millisecond

// RetryPolicy decides whether and when a classified error is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// ShouldRetry reports whether another attempt is allowed for this error.
// Non-retryable kinds (declined cards, configuration errors, auth failures)
// surface immediately regardless of the attempt count.
func (p RetryPolicy) ShouldRetry(err *Error, attempt int) bool {
	if err == nil || !err.Retryable {
		return false
	}
	return attempt+1 < p.MaxAttempts
}

// NextDelay computes the backoff before the given attempt number (0-based):
// BaseDelay doubled per attempt, capped at MaxDelay, plus 0–500ms jitter.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(maxJitter)))
}

// Do runs op with retry. op errors are classified once here; the returned
// error is always a taxonomy *Error (nil on success).
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) *Error {
	var lastErr *Error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = Classify(err)
		if !p.ShouldRetry(lastErr, attempt) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return Classify(ctx.Err())
		case <-time.After(p.NextDelay(attempt)):
		}
	}
	return lastErr
}
