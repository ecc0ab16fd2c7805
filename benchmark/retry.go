package benchmark

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/hermes/internal/herrors"
)

// retryPolicy bounds evaluator calls with exponential backoff, grounded on
// ai/llm.go's retry loop in the teacher repo (attempt counter, doubling
// delay capped at a ceiling).
type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	limiter  *rate.Limiter
}

func newRetryPolicy(attempts int, qps float64) *retryPolicy {
	if attempts <= 0 {
		attempts = 3
	}
	if qps <= 0 {
		qps = 5
	}
	return &retryPolicy{
		attempts: attempts,
		base:     200 * time.Millisecond,
		max:      5 * time.Second,
		limiter:  rate.NewLimiter(rate.Limit(qps), int(math.Max(1, qps))),
	}
}

// do runs fn up to p.attempts times, retrying only herrors.Transient
// failures with exponential backoff, and throttling every attempt through
// p.limiter so a burst of auto-benchmark triggers can't overwhelm the
// evaluator.
func (p *retryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !herrors.Is(lastErr, herrors.Transient) {
			return lastErr
		}

		delay := p.base * time.Duration(1<<uint(attempt))
		if delay > p.max {
			delay = p.max
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
