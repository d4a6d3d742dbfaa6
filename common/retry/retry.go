// Package retry provides exponential-backoff retry logic for transient errors
// such as a flaky LLM endpoint.
//
// Usage:
//
//	reply, err := retry.Value(ctx, retry.DefaultConfig, func() (string, error) {
//	    return client.Call(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Config controls the retry behaviour.
type Config struct {
	// MaxAttempts is the total number of attempts (including the first).
	// Zero or negative values are treated as 1.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt. Each following
	// wait doubles, capped at MaxDelay.
	InitialDelay time.Duration
	// MaxDelay caps the per-attempt wait.
	MaxDelay time.Duration
	// ShouldRetry classifies errors as retryable. Nil retries everything.
	ShouldRetry func(err error) bool
}

// DefaultConfig is three attempts starting at 300ms: 300ms, then 600ms.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 300 * time.Millisecond,
	MaxDelay:     5 * time.Second,
}

func (cfg Config) normalized() Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = func(error) bool { return true }
	}
	return cfg
}

// Do calls fn until it succeeds, the attempts run out, a non-retryable
// error is returned, or ctx is done. The error from the last attempt is
// returned, joined with the context error when cancellation cut it short.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := Value(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	cfg = cfg.normalized()

	var (
		zero    T
		lastErr error
		delay   = cfg.InitialDelay
	)
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, errors.Join(lastErr, err)
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !cfg.ShouldRetry(err) || attempt == cfg.MaxAttempts {
			break
		}

		slog.Debug("retry: attempt failed",
			"attempt", attempt, "max", cfg.MaxAttempts,
			"err", err, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}

		delay = min(delay*2, cfg.MaxDelay)
	}
	return zero, lastErr
}
