package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"book_harvester/internal/domain"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransportErrors(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return domain.TransportError(errors.New("connection reset"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsTransportRetries(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		return domain.TransportError(errors.New("timeout"))
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, domain.ErrorTransport, domain.CategoryOf(err))
}

func TestDo_NeverRetriesContentInvalid(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		return domain.ContentInvalidError(errors.New("empty body"))
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RateLimitRetriedOnce(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		return domain.RateLimitError(errors.New("429"), 1*time.Millisecond)
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, domain.ErrorRateLimit, domain.CategoryOf(err))
}

func TestDo_RateLimitThenSuccess(t *testing.T) {
	calls := 0
	err := testPolicy().Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return domain.RateLimitError(errors.New("429"), 1*time.Millisecond)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_NonPositiveAttemptsStillRunOnce(t *testing.T) {
	for _, maxAttempts := range []int{0, -1} {
		calls := 0
		p := Policy{MaxAttempts: maxAttempts}

		err := p.Do(context.Background(), func() error {
			calls++
			return domain.TransportError(errors.New("timeout"))
		})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Hour,
		MaxBackoff:     1 * time.Hour,
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error {
		return domain.TransportError(errors.New("timeout"))
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	p := Policy{
		MaxAttempts:    5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     4 * time.Second,
	}

	assert.Equal(t, 1*time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 4*time.Second, p.Backoff(4))
}
