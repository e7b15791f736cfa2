package observe

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds all configuration for the Observer.
type Config struct {
	ServiceName string
	Version     string
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // prometheus|none

	// Registry receives the exported metrics. If nil, a new registry is
	// created and available via Observer.Registry.
	Registry *prometheus.Registry
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Level  string // debug|info|warn|error
	Writer io.Writer
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("observe: service name is required")
	}
	switch c.Metrics.Exporter {
	case "", "prometheus", "none":
	default:
		return fmt.Errorf("observe: unknown metrics exporter %q", c.Metrics.Exporter)
	}
	return nil
}

// Observer bundles the logger and meter handed to the auth components.
type Observer interface {
	// Logger returns the structured logger.
	Logger() Logger

	// Meter returns the meter for creating instruments.
	Meter() metric.Meter

	// Registry returns the Prometheus registry backing the meter, or nil
	// when metrics are disabled.
	Registry() *prometheus.Registry

	// Shutdown flushes and stops the metric pipeline.
	Shutdown(ctx context.Context) error
}

// observer is the concrete implementation of Observer.
type observer struct {
	logger        Logger
	meter         metric.Meter
	registry      *prometheus.Registry
	meterProvider *sdkmetric.MeterProvider
}

// NewObserver creates a new Observer with the given configuration.
func NewObserver(cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	obs := &observer{}

	if cfg.Logging.Writer != nil {
		obs.logger = NewLoggerWithWriter(cfg.Logging.Level, cfg.Logging.Writer)
	} else {
		obs.logger = NewLogger(cfg.Logging.Level)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Exporter != "none" {
		registry := cfg.Metrics.Registry
		if registry == nil {
			registry = prometheus.NewRegistry()
		}

		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("observe: create prometheus exporter: %w", err)
		}

		res := resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		)

		obs.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		obs.meter = obs.meterProvider.Meter(cfg.ServiceName)
		obs.registry = registry
	} else {
		obs.meter = noop.NewMeterProvider().Meter(cfg.ServiceName)
	}

	return obs, nil
}

func (o *observer) Logger() Logger                 { return o.logger }
func (o *observer) Meter() metric.Meter            { return o.meter }
func (o *observer) Registry() *prometheus.Registry { return o.registry }

// Shutdown flushes and stops the metric pipeline.
func (o *observer) Shutdown(ctx context.Context) error {
	if o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
