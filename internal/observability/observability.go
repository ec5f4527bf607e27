// Package observability wires OpenTelemetry into scoutgate. Setup builds the
// tracer and meter providers from configuration; the returned Provider then
// hands out the instrumented key-value connector and the scan recorder, so
// every signal the service emits carries the same resource description.
package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"scoutgate/internal/kv"
	"scoutgate/internal/models"
	"scoutgate/internal/version"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Resource attribute keys specific to scoutgate.
const (
	AttrStoreBackend = attribute.Key("scoutgate.store.backend")
	AttrHourlyLimit  = attribute.Key("scoutgate.quota.hourly_limit")
	AttrDailyLimit   = attribute.Key("scoutgate.quota.daily_limit")
)

// environmentKeys are consulted in order for deployment.environment.
var environmentKeys = []string{"SCOUTGATE_ENVIRONMENT", "ENVIRONMENT", "DEPLOYMENT_ENV", "VERCEL_ENV"}

// Provider owns the SDK providers built by Setup. A Provider with neither
// tracing nor metrics enabled hands back uninstrumented components.
type Provider struct {
	resource       *resource.Resource
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	promExporter   *prometheus.Exporter
}

// Setup builds the providers for cfg and installs them as the otel globals,
// which the HTTP middleware reads. Call Shutdown on exit to flush spans.
func Setup(cfg *models.Config, info version.Info) (*Provider, error) {
	res, err := newResource(cfg, info)
	if err != nil {
		return nil, err
	}
	p := &Provider{resource: res}

	if cfg.Observability.Tracing.Enabled {
		tp, err := newTracerProvider(res, cfg.Observability.Tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		p.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if cfg.Metrics.Enabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.promExporter = exporter
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(p.meterProvider)
	}

	return p, nil
}

func newResource(cfg *models.Config, info version.Info) (*resource.Resource, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.Observability.ServiceName),
			semconv.ServiceVersion(info.Version),
			semconv.ServiceInstanceID(info.InstanceID),
			semconv.HostName(info.Hostname),
			semconv.DeploymentEnvironment(deploymentEnvironment()),
			attribute.String("vcs.revision", info.GitCommit),
			AttrStoreBackend.String(cfg.Store.Type),
			AttrHourlyLimit.Int(cfg.Quota.HourlyLimit),
			AttrDailyLimit.Int(cfg.Quota.DailyLimit),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(res *resource.Resource, cfg models.TracingConfig) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		exporter, err = otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	), nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func deploymentEnvironment() string {
	for _, key := range environmentKeys {
		if env := os.Getenv(key); env != "" {
			return env
		}
	}
	return "development"
}

// Resource describes this instance on every span and metric.
func (p *Provider) Resource() *resource.Resource {
	return p.resource
}

// Enabled reports whether tracing or metrics are on.
func (p *Provider) Enabled() bool {
	return p.tracerProvider != nil || p.meterProvider != nil
}

// PrometheusExporter returns the exporter backing the metrics endpoint, or
// nil when metrics are disabled.
func (p *Provider) PrometheusExporter() *prometheus.Exporter {
	return p.promExporter
}

func (p *Provider) meter() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

func (p *Provider) tracer() trace.TracerProvider {
	if p.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return p.tracerProvider
}

// Connector wraps inner so store sessions report through this provider.
// inner is returned as-is when observability is off.
func (p *Provider) Connector(inner kv.Connector) (kv.Connector, error) {
	if !p.Enabled() {
		return inner, nil
	}
	instrumented, err := NewInstrumentedConnector(inner,
		WithMeterProvider(p.meter()),
		WithTracerProvider(p.tracer()),
	)
	if err != nil {
		return nil, fmt.Errorf("instrument store: %w", err)
	}
	return instrumented, nil
}

// ScanRecorder returns scan metrics bound to this provider's meter. With
// metrics off the recorder is a no-op.
func (p *Provider) ScanRecorder() (*ScanMetrics, error) {
	return NewScanMetrics(p.meter())
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
