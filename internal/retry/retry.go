// Package retry applies the uniform provider retry policy: bounded
// attempts, exponential backoff with jitter, vendor Retry-After hints, and
// no retries for permanent failures.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

const (
	// DefaultMaxAttempts bounds how many times an operation runs,
	// including the first attempt.
	DefaultMaxAttempts = 3

	// DefaultInitialDelay seeds the exponential backoff schedule.
	DefaultInitialDelay = 500 * time.Millisecond

	defaultMultiplier = 2.0
	defaultMaxDelay   = 30 * time.Second
)

// Policy bounds retry behavior for provider calls. The same policy applies
// to every provider.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPolicy returns the uniform provider retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// Do runs op under the policy. Transient failures are retried with
// exponential backoff and jitter; a vendor Retry-After hint overrides the
// scheduled delay; permanent failures (auth, validation, config, not
// found) and context cancellation stop immediately.
func Do[T any](ctx context.Context, policy Policy, op func() (T, error)) (T, error) {
	policy = policy.normalized()
	logger := observability.FromContext(ctx)

	operation := func() (T, error) {
		result, err := op()
		if err == nil {
			return result, nil
		}
		if !domain.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		if hint := domain.RetryAfterOf(err); hint > 0 {
			// Keep the original chain so callers can still classify the
			// error when this turns out to be the final attempt.
			return result, errors.Join(err, &backoff.RetryAfterError{Duration: hint})
		}
		return result, err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = policy.InitialDelay
	expo.Multiplier = defaultMultiplier
	expo.MaxInterval = policy.MaxDelay

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			logger.Warn("provider call failed, retrying",
				observability.Error(err),
				observability.String("code", string(domain.CodeOf(err))),
				observability.Duration("delay", delay))
		}),
	)
}
