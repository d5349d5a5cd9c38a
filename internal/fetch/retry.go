package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eodatalab/stacfetch/internal/metrics"
)

// RetryPolicy retries fallible operations with exponential backoff. The
// delay doubles after every failed attempt. Sleep is injectable so tests
// can observe backoff without waiting.
type RetryPolicy struct {
	Attempts   int
	Delay      time.Duration
	Multiplier float64
	Sleep      func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy with the standard multiplier of 2.
func NewRetryPolicy(attempts int, delay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		Attempts:   attempts,
		Delay:      delay,
		Multiplier: 2,
		Sleep:      sleepContext,
	}
}

// Do runs op until it succeeds, the attempts are exhausted, or the error
// becomes non-retryable. The returned error is the last one op produced.
func (p *RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.Delay
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if attempt >= attempts {
			return fmt.Errorf("after %d attempts: %w", attempts, err)
		}
		if !retryable(err) {
			return err
		}
		metrics.RetryAttempts.Inc()
		if serr := p.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry canceled: %w", serr)
		}
		delay = time.Duration(float64(delay) * p.multiplier())
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var terminal *terminalError
	return !errors.As(err, &terminal)
}

// terminalError marks an error that must not be retried.
type terminalError struct{ err error }

// Terminal wraps err so the retry policy surfaces it immediately.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

func (p *RetryPolicy) multiplier() float64 {
	if p.Multiplier <= 0 {
		return 2
	}
	return p.Multiplier
}

func (p *RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
