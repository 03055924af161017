package annotation

import (
	"context"
	"time"

	"pvv/api/models"

	"github.com/cenkalti/backoff"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Retryable:   IsTransient,
	}
}

func RetryPolicyFromConfig(cfg *models.Config) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.Annotation.MaxAttempts > 0 {
		p.MaxAttempts = cfg.Annotation.MaxAttempts
	}
	if cfg.Annotation.BaseDelay > 0 {
		p.BaseDelay = cfg.Annotation.BaseDelay
	}
	if cfg.Annotation.MaxDelay > 0 {
		p.MaxDelay = cfg.Annotation.MaxDelay
	}
	return p
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	// attempts are bounded by count, not elapsed time
	b.MaxElapsedTime = 0

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempts are exhausted. It returns the number of attempts made and the
// last error.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error, notify func(err error, wait time.Duration)) (int, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(attempts)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx), notify)

	return attempts, err
}
