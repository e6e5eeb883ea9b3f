// Package retry runs an operation up to a fixed number of times with a linear
// backoff between attempts.
//
// Attempts are strictly sequential. The delay before retry n is n*Base, so with
// the defaults a call that keeps failing is tried at t=0, t=1s and t=3s. When
// the attempts are used up the error of the last attempt is returned as-is.
//
// Which errors are worth another attempt is decided by the policy's Classifier.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 3
	DefaultBase        = time.Second
)

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// RetryAll treats every error as retryable.
func RetryAll(err error) bool { return err != nil }

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one
	MaxAttempts int

	// Base is the backoff unit: retry n waits n*Base
	Base time.Duration

	// Retryable defaults to RetryAll
	Retryable Classifier

	// OnRetry, when set, is called before each wait with the number of the
	// attempt that just failed, the upcoming delay and the failure.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default returns the policy with 3 attempts and a 1s backoff unit.
func Default(classifier Classifier) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Base:        DefaultBase,
		Retryable:   classifier,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Base < 0 {
		p.Base = 0
	}
	if p.Retryable == nil {
		p.Retryable = RetryAll
	}
	return p
}

// Do calls op until it succeeds, returns an error the policy does not retry,
// the attempts run out or ctx is done.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		result  T
		attempt int
		lastErr error
	)

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		delay := time.Duration(attempt) * p.Base
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, lastErr)
		}
		return delay, false
	})

	err := goretry.Do(ctx, goretry.WithMaxRetries(uint64(p.MaxAttempts-1), backoff), func(ctx context.Context) error {
		attempt++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		lastErr = err
		if p.Retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		var zero T
		// a context that ends during a backoff wait reports the context error;
		// the caller gets the last real failure alongside it
		if lastErr != nil && !errors.Is(err, lastErr) && ctx.Err() != nil {
			return zero, errors.Join(ctx.Err(), lastErr)
		}
		return zero, err
	}
	return result, nil
}
