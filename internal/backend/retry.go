package backend

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/smartdeal/dealextract/internal/domain"
	"github.com/smartdeal/dealextract/internal/logger"
)

// Policy is the retry/backoff policy shared by all backend clients.
// Transient failures are retried with exponential backoff plus jitter;
// fatal failures propagate immediately; cancellation aborts the loop
// without a further attempt.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	JitterFrac float64

	// sleep is injectable for tests; nil means a context-aware
	// time.Sleep.
	sleep func(ctx context.Context, d time.Duration) error
	// randFloat is injectable for tests; nil means math/rand.
	randFloat func() float64
}

// DefaultPolicy returns the default retry behaviour: 3 retries, 1s base
// delay doubling per attempt, ±20% jitter, 30s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		JitterFrac: 0.2,
	}
}

// Do runs fn up to MaxRetries+1 times. The returned error is nil on
// success, domain.ErrCancelled if the deadline expired, the classified
// failure for fatal errors, and domain.ErrBackendUnavailable once the
// retry budget is exhausted.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) *Error) error {
	var lastErr *Error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}

		callErr := fn(ctx)
		if callErr == nil {
			return nil
		}
		lastErr = callErr

		switch callErr.Kind {
		case FailureCancelled:
			return fmt.Errorf("%w: %s", domain.ErrCancelled, callErr.Message)
		case FailureFatal:
			return callErr
		}

		if attempt == p.MaxRetries {
			break
		}

		delay := p.backoff(attempt)
		logger.Debug("transient backend failure, backing off",
			"attempt", attempt+1,
			"delay", delay,
			"error", callErr.Message)
		if err := p.doSleep(ctx, delay); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %s", domain.ErrBackendUnavailable, p.MaxRetries+1, lastErr.Message)
}

// backoff computes the delay before the next attempt: BaseDelay doubled
// per attempt, ±JitterFrac jitter, capped at MaxDelay.
func (p Policy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFrac > 0 {
		rf := p.randFloat
		if rf == nil {
			rf = rand.Float64
		}
		// Spread uniformly across [1-jitter, 1+jitter].
		factor := 1 + p.JitterFrac*(2*rf()-1)
		delay = time.Duration(float64(delay) * factor)
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func (p Policy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
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
