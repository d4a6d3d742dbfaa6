package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the circuit breaker in front of the endpoint.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Default 3.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial request.
	// Default 30s.
	Timeout time.Duration
	// HalfOpenMaxRequests is how many trial requests must succeed to close
	// the circuit again. Default 2.
	HalfOpenMaxRequests uint32
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures == 0 {
		c.MaxFailures = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.HalfOpenMaxRequests == 0 {
		c.HalfOpenMaxRequests = 2
	}
	return c
}

type breaker struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(cfg BreakerConfig, logger *slog.Logger) *breaker {
	cfg = cfg.withDefaults()
	return &breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// Only endpoint health trips the breaker. A reply the model left
		// empty, a rejected request, or our own cancellation says nothing
		// about whether the next call will get through.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			switch {
			case errors.Is(err, ErrNoReply),
				errors.Is(err, context.Canceled),
				errors.As(err, &se) && se.Code < 500 && se.Code != 429:
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm: circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})}
}

// execute runs fn through the breaker, mapping rejection to ErrCircuitOpen.
func (b *breaker) execute(fn func() (string, error)) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrCircuitOpen
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *breaker) state() string {
	return b.cb.State().String()
}
