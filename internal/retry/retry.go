package retry

import (
	"context"
	"time"

	"book_harvester/internal/domain"
)

// Policy is a bounded exponential backoff applied per error category:
// transport and persistence failures are retried up to MaxAttempts,
// a rate-limit response is honored and retried exactly once, and
// content-invalid failures are returned immediately.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Do runs fn until it succeeds, exhausts the policy, or hits a non-retryable
// outcome. The context cancels any in-progress wait.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	// fn always runs at least once, whatever the configured bound says.
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	rateLimited := false

	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		switch domain.CategoryOf(err) {
		case domain.ErrorContentInvalid:
			return err
		case domain.ErrorRateLimit:
			if rateLimited {
				return err
			}
			rateLimited = true
			wait := domain.RetryAfterOf(err)
			if wait == 0 {
				wait = p.InitialBackoff
			}
			if werr := sleep(ctx, wait); werr != nil {
				return werr
			}
			// the honored wait does not consume a backoff attempt
			attempt--
		default:
			if attempt == attempts {
				return err
			}
			if werr := sleep(ctx, p.Backoff(attempt)); werr != nil {
				return werr
			}
		}
	}

	return err
}

// Backoff returns the wait before the next attempt, doubling from
// InitialBackoff and capped at MaxBackoff.
func (p Policy) Backoff(attempt int) time.Duration {
	backoff := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	return backoff
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
