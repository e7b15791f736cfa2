package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/url"
	"time"
)

// Sentinel errors.
var (
	// ErrTimeout is returned when an operation exceeds its bound.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// DefaultTimeout bounds network calls when no explicit bound is given.
const DefaultTimeout = 15 * time.Second

// WithTimeout runs op under a deadline. The operation receives a derived
// context and must honor cancellation; exceeding the bound yields
// ErrTimeout rather than leaving the call pending.
func WithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// RetryConfig configures transient-failure retry.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first).
	// Default: 2.
	MaxAttempts int

	// InitialDelay is the delay before the first retry. Default: 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries. Default: 2s.
	MaxDelay time.Duration

	// RetryIf decides whether an error warrants another attempt.
	// Default: Transient.
	RetryIf func(err error) bool
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	if c.RetryIf == nil {
		c.RetryIf = Transient
	}
}

// Transient reports whether err looks like a transient network failure.
// Protocol-level rejections (non-2xx responses already turned into
// domain errors) are not transient and must not be retried.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || !errors.Is(err, context.Canceled)
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Retry runs op up to cfg.MaxAttempts times with exponential backoff and
// jitter, honoring context cancellation between attempts.
func Retry(ctx context.Context, cfg RetryConfig, op func(context.Context) error) error {
	cfg.applyDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !cfg.RetryIf(lastErr) || attempt == cfg.MaxAttempts {
			return lastErr
		}

		delay := backoff(cfg, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoff(cfg RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if delay > 0 {
		// Up to 25% jitter.
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int63n(int64(delay / 4)))
	}
	return delay
}
