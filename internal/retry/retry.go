// Package retry re-runs transient provider calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy holds retry configuration.
type Policy struct {
	MaxAttempts int           // Maximum number of attempts (0 = unbounded)
	InitialWait time.Duration // Wait before the second attempt
	MaxWait     time.Duration // Upper bound for a single wait
	Multiplier  float64       // Backoff multiplier
	Jitter      float64       // Jitter factor (0-1)
}

// DefaultPolicy suits provider listing and download calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     15 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// NoRetry makes exactly one attempt.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as worth another attempt.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t transientError
	return errors.As(err, &t)
}

// Backoff returns the wait before attempt n+1 (n starts at 1), without jitter.
func (p Policy) Backoff(n int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	wait := float64(p.InitialWait) * math.Pow(mult, float64(n-1))
	if p.MaxWait > 0 && wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}
	return time.Duration(wait)
}

func (p Policy) wait(n int) time.Duration {
	wait := float64(p.Backoff(n))
	if p.Jitter > 0 {
		wait += wait * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

// Do runs fn until it succeeds, returns a non-transient error, the attempts
// run out, or ctx is done. The returned error keeps the Transient mark.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; p.MaxAttempts == 0 || attempt <= p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}
		if p.MaxAttempts != 0 && attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(p.wait(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}
