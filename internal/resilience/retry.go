// Package resilience retries transient failures with exponential backoff and
// jitter. The store uses it to ride out a database that is still starting.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/vendor-match/internal/config"
)

// Policy is an exponential backoff schedule. Zero fields take the values of
// DefaultPolicy.
type Policy struct {
	Attempts int           // total attempts including the first
	Base     time.Duration // delay before the first retry
	Cap      time.Duration
	Factor   float64
	Jitter   float64 // fraction of each delay, 0.25 = ±25%

	// Retryable decides which errors are retried. Defaults to IsTransient.
	Retryable func(error) bool
	// Notify is called before each wait.
	Notify func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy is used when opening a database.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 5,
		Base:     500 * time.Millisecond,
		Cap:      10 * time.Second,
		Factor:   2,
		Jitter:   0.25,
	}
}

// ForStore derives the connect policy from store settings and logs each
// retry under the store component.
func ForStore(cfg config.StoreConfig) Policy {
	p := DefaultPolicy()
	if cfg.ConnectAttempts > 0 {
		p.Attempts = cfg.ConnectAttempts
	}
	if cfg.ConnectBackoffMs > 0 {
		p.Base = time.Duration(cfg.ConnectBackoffMs) * time.Millisecond
	}
	p.Notify = LogRetries("store", "open")
	return p
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Cap <= 0 {
		p.Cap = d.Cap
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	p.Jitter = math.Max(0, math.Min(p.Jitter, 1))
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Backoff returns the wait after the given failed attempt (0-based), capped
// and jittered.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	d := math.Min(float64(p.Base)*math.Pow(p.Factor, float64(attempt)), float64(p.Cap))
	if p.Jitter > 0 {
		d *= 1 + p.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, fails with a non-retryable error, runs
// out of attempts or ctx ends. The last error is returned with the zero value.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var err error
	for attempt := 0; ; attempt++ {
		var v T
		if v, err = fn(ctx); err == nil {
			return v, nil
		}
		if attempt+1 >= p.Attempts || ctx.Err() != nil || !p.Retryable(err) {
			return zero, err
		}

		wait := p.Backoff(attempt)
		if p.Notify != nil {
			p.Notify(attempt+1, wait, err)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
}

// LogRetries returns a Notify callback that logs a warning per retry.
func LogRetries(component, operation string) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		zap.L().Warn("retrying",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
}
