// Package retry re-invokes failing operations under a bounded exponential
// backoff schedule. Whether a failure is worth another attempt is decided by
// a classifier; the default understands the backend error taxonomy.
package retry

import (
	"context"
	"time"

	"github.com/levchenko/complychat/internal/backend"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = time.Second
)

// Classifier reports whether a failure is eligible for another attempt.
type Classifier func(error) bool

type config struct {
	attempts int
	base     time.Duration
	classify Classifier
	sleep    func(context.Context, time.Duration) error
}

// Option adjusts the retry schedule for one Do call.
type Option func(*config)

// Attempts bounds the total number of invocations (not re-invocations).
func Attempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// BaseDelay sets the first backoff delay; attempt i waits base * 2^i.
func BaseDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.base = d
		}
	}
}

// Classify replaces the default eligibility rule.
func Classify(fn Classifier) Option {
	return func(c *config) { c.classify = fn }
}

// withSleep substitutes the backoff suspension, used by tests to observe
// delays without waiting them out.
func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *config) { c.sleep = fn }
}

// Do invokes op until it succeeds, an attempt fails with an ineligible error,
// the attempt budget is exhausted, or ctx is cancelled during a backoff wait.
// The schedule is pure exponential backoff with no jitter and no delay cap;
// nothing is shared between Do calls. The returned error is always the most
// recent failure.
func Do(ctx context.Context, op func(context.Context) error, opts ...Option) error {
	cfg := config{
		attempts: defaultAttempts,
		base:     defaultBaseDelay,
		classify: backend.Retryable,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var lastErr error
	for attempt := 0; attempt < cfg.attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.classify(err) {
			return err
		}
		if attempt == cfg.attempts-1 {
			break
		}

		delay := cfg.base << attempt
		if err := cfg.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// sleepCtx suspends cooperatively: other operations keep running, and a
// cancelled context cuts the wait short.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
