package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 10 * time.Second
)

// Policy describes how an operation is retried: exponential backoff with
// full jitter, bounded by MaxAttempts (the first call included).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether err is transient. Nil retries every error.
	Retryable func(err error) bool
	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Jitter maps the capped exponential delay to the actual sleep.
	Jitter func(d time.Duration) time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.Jitter == nil {
		p.Jitter = FullJitter
	}
	return p
}

// Backoff returns the un-jittered delay before the given retry (1-based).
func (p Policy) Backoff(retry int) time.Duration {
	p = p.withDefaults()
	d := p.BaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

func NoJitter(d time.Duration) time.Duration {
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are used up or ctx is done. It reports how many attempts were made.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	p = p.withDefaults()

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, attempt, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Jitter(p.Backoff(attempt))
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt, fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return zero, p.MaxAttempts, lastErr
}
