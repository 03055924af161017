package annotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   IsTransient,
	}
}

func TestRetryPolicy(t *testing.T) {
	transient := &TransientError{StatusCode: 503, Err: errors.New("unavailable")}
	permanent := &PermanentError{StatusCode: 400, Err: errors.New("bad request")}

	t.Run("succeeds first time", func(t *testing.T) {
		attempts, err := fastPolicy(3).Do(context.Background(), func(int) error { return nil }, nil)
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retries transient failures then succeeds", func(t *testing.T) {
		attempts, err := fastPolicy(3).Do(context.Background(), func(attempt int) error {
			if attempt < 3 {
				return transient
			}
			return nil
		}, nil)
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops after max attempts", func(t *testing.T) {
		var notified int
		attempts, err := fastPolicy(3).Do(context.Background(), func(int) error { return transient },
			func(error, time.Duration) { notified++ })
		assert.Equal(t, 3, attempts)
		assert.True(t, IsTransient(err))
		assert.Equal(t, 2, notified)
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		attempts, err := fastPolicy(5).Do(context.Background(), func(int) error { return permanent }, nil)
		assert.Equal(t, 1, attempts)
		assert.Same(t, permanent, err)
	})

	t.Run("does not retry not found", func(t *testing.T) {
		attempts, err := fastPolicy(5).Do(context.Background(), func(int) error { return ErrNotFound }, nil)
		assert.Equal(t, 1, attempts)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("custom predicate", func(t *testing.T) {
		p := fastPolicy(4)
		p.Retryable = func(error) bool { return true }
		attempts, _ := p.Do(context.Background(), func(int) error { return permanent }, nil)
		assert.Equal(t, 4, attempts)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := fastPolicy(10)
		p.BaseDelay = time.Hour
		p.MaxDelay = time.Hour

		attempts, err := p.Do(ctx, func(int) error {
			cancel()
			return transient
		}, nil)
		assert.Equal(t, 1, attempts)
		assert.Error(t, err)
	})
}

func TestClassifyStatus(t *testing.T) {
	assert.True(t, IsTransient(classifyStatus(429)))
	assert.True(t, IsTransient(classifyStatus(500)))
	assert.True(t, IsTransient(classifyStatus(503)))
	assert.False(t, IsTransient(classifyStatus(400)))
	assert.True(t, errors.Is(classifyStatus(404), ErrNotFound))
}
