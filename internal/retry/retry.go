// Package retry runs fallible operations with bounded attempts and
// exponential backoff with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts is the default number of calls made before giving up.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the default base of the exponential backoff.
	DefaultBaseDelay = 500 * time.Millisecond

	// DefaultMaxJitter is the default upper bound of the random jitter.
	DefaultMaxJitter = 100 * time.Millisecond

	// maxShift caps the exponent so the delay cannot overflow.
	maxShift = 20
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy configures bounded retry.
// The delay slept after failed attempt n (1-based) is
// BaseDelay * 2^n + rand[0, MaxJitter], never shorter than the previous delay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration

	// OnRetry is called after a failed attempt, before sleeping.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns the policy used for click persistence.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
	}
}

// Backoff returns the delay after failed attempt n (1-based), without jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	return p.BaseDelay * time.Duration(1<<attempt)
}

func (p Policy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	return rand.N(p.MaxJitter + 1)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Run calls op until it succeeds, returns a permanent error, the context is
// done, or MaxAttempts calls have failed.
func (p Policy) Run(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is Run for operations that return a value.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.attempts()

	var prevDelay time.Duration
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if attempt >= maxAttempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctxErr)
		}

		delay := p.Backoff(attempt) + p.jitter()
		if delay < prevDelay {
			delay = prevDelay
		}
		prevDelay = delay

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry aborted after %d attempts: %w", attempt, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}
