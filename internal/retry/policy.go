package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vroommarket/listingbot/internal/metrics"
)

// Config tunes a Policy. Zero fields fall back to DefaultConfig values.
type Config struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	CallTimeout     time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns three attempts with 1s..30s backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = d.BreakerFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = d.BreakerTimeout
	}
	return c
}

// Policy retries calls to one collaborator. Each attempt passes through the
// collaborator's circuit breaker; an open breaker fails fast without retry.
type Policy struct {
	name    string
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func() float64
}

// New creates a Policy for the named collaborator.
func New(name string, cfg Config, logger *slog.Logger) *Policy {
	cfg = cfg.withDefaults()
	log := logger.With("component", "retry", "collaborator", name)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Only failures that say the collaborator is unhealthy trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(Classify(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return &Policy{
		name:    name,
		cfg:     cfg,
		breaker: breaker,
		logger:  log,
		sleep:   sleepContext,
		jitter:  func() float64 { return rand.Float64()*0.4 - 0.2 },
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the wait before retry number attempt (1-based). A rate
// limit hint replaces the computed delay.
func (p *Policy) Backoff(attempt int, err error) time.Duration {
	var limited *RateLimitError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		return limited.RetryAfter
	}

	d := p.cfg.BaseDelay
	for i := 1; i < attempt && d < p.cfg.MaxDelay; i++ {
		d *= 2
	}
	d = min(d, p.cfg.MaxDelay)
	d += time.Duration(p.jitter() * float64(d))
	return max(min(d, p.cfg.MaxDelay), 0)
}

// Do runs fn under the policy.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Returned errors are classified and wrapped with op.
// A nil Policy runs fn once.
func Do[T any](ctx context.Context, p *Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	if p == nil {
		v, err := fn(ctx)
		if err != nil {
			return zero, fmt.Errorf("%s: %w", op, Classify(err))
		}
		return v, nil
	}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}

		v, err := execute(ctx, p, fn)
		if err == nil {
			return v, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s: %s circuit open: %w", op, p.name, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%s: %w", op, ctxErr)
		}

		lastErr = Classify(err)
		if !IsRetryable(lastErr) || attempt == p.cfg.MaxAttempts {
			return zero, fmt.Errorf("%s failed after %d attempt(s): %w", op, attempt, lastErr)
		}

		delay := p.Backoff(attempt, lastErr)
		metrics.Retries.WithLabelValues(op, reason(lastErr)).Inc()
		p.logger.WarnContext(ctx, "Retrying after error",
			"operation", op,
			"attempt", attempt,
			"delay", delay,
			"error", lastErr,
		)
		if err := p.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
	}

	return zero, fmt.Errorf("%s: %w", op, lastErr)
}

func execute[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx := ctx
	if p.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
	}

	out, err := p.breaker.Execute(func() (interface{}, error) {
		return fn(callCtx)
	})
	v, _ := out.(T)
	return v, err
}
