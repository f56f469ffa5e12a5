package common

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy retries an operation a fixed number of times with a linearly
// increasing delay between attempts. Exchange calls that exhaust the policy
// surface the last error to the caller, which treats it as a failure of that
// single operation rather than of the whole process.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration // base delay; attempt n waits n*Delay
}

// DefaultRetryPolicy mirrors the exchange client defaults: 3 attempts,
// 1s/2s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second}
}

// permanentError marks an error as not worth retrying.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the retry policy fails fast on it. Use for exchange
// rejections caused by invalid parameters rather than transient conditions.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn under the policy. The context is checked between attempts so a
// shutdown does not sit out the full backoff schedule.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if IsPermanent(err) || i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i) * p.Delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
