package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics records authentication and OAuth2 flow metrics.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording must not panic.
type AuthMetrics struct {
	attempts      metric.Int64Counter
	failures      metric.Int64Counter
	cacheHits     metric.Int64Counter
	refreshes     metric.Int64Counter
	callbacks     metric.Int64Counter
	callbackDurMs metric.Float64Histogram
}

// NewAuthMetrics creates the auth instrument set on the given meter.
func NewAuthMetrics(meter metric.Meter) (*AuthMetrics, error) {
	attempts, err := meter.Int64Counter(
		"auth.attempts.total",
		metric.WithDescription("Total number of authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"auth.failures.total",
		metric.WithDescription("Total number of failed authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"auth.cache.hits.total",
		metric.WithDescription("Credential cache hits that skipped backend validation"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	refreshes, err := meter.Int64Counter(
		"oauth.token.refreshes.total",
		metric.WithDescription("OAuth2 token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	callbacks, err := meter.Int64Counter(
		"oauth.callbacks.total",
		metric.WithDescription("OAuth2 authorization callbacks handled"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, err
	}

	callbackDurMs, err := meter.Float64Histogram(
		"oauth.callback.duration_ms",
		metric.WithDescription("OAuth2 callback handling duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		attempts:      attempts,
		failures:      failures,
		cacheHits:     cacheHits,
		refreshes:     refreshes,
		callbacks:     callbacks,
		callbackDurMs: callbackDurMs,
	}, nil
}

// RecordAuth records one authentication attempt.
func (m *AuthMetrics) RecordAuth(ctx context.Context, provider string, ok bool) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("auth.provider", provider))
	m.attempts.Add(ctx, 1, opt)
	if !ok {
		m.failures.Add(ctx, 1, opt)
	}
}

// RecordCacheHit records a credential cache hit.
func (m *AuthMetrics) RecordCacheHit(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("auth.provider", provider)))
}

// RecordRefresh records one token refresh attempt.
func (m *AuthMetrics) RecordRefresh(ctx context.Context, provider string, ok bool) {
	if m == nil {
		return
	}
	m.refreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("oauth.provider", provider),
		attribute.Bool("ok", ok),
	))
}

// RecordCallback records one handled authorization callback.
func (m *AuthMetrics) RecordCallback(ctx context.Context, provider string, duration time.Duration, ok bool) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(
		attribute.String("oauth.provider", provider),
		attribute.Bool("ok", ok),
	)
	m.callbacks.Add(ctx, 1, opt)
	m.callbackDurMs.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}
