package observability

import (
	"context"
	"scoutgate/internal/kv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "scoutgate/kv"

// Connect outcomes reported on the kv.session.connects counter.
const (
	OutcomeAvailable   = "available"
	OutcomeUnavailable = "unavailable"
)

// InstrumentedConnector wraps a kv.Connector so every session it hands out
// records trace spans, operation latency and error counts, and every Connect
// is counted by outcome.
type InstrumentedConnector struct {
	inner    kv.Connector
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	connects metric.Int64Counter
}

// InstrumentOption customizes an InstrumentedConnector.
type InstrumentOption func(*instrumentOptions)

type instrumentOptions struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithMeterProvider records metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) InstrumentOption {
	return func(o *instrumentOptions) { o.meterProvider = mp }
}

// WithTracerProvider records spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) InstrumentOption {
	return func(o *instrumentOptions) { o.tracerProvider = tp }
}

// NewInstrumentedConnector creates the wrapper. Instruments are registered
// on the global providers set up by Setup unless overridden.
func NewInstrumentedConnector(inner kv.Connector, opts ...InstrumentOption) (*InstrumentedConnector, error) {
	o := instrumentOptions{
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)

	duration, err := meter.Float64Histogram(
		"kv.operation.duration",
		metric.WithDescription("Duration of key-value store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"kv.operation.errors",
		metric.WithDescription("Number of key-value store operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	connects, err := meter.Int64Counter(
		"kv.session.connects",
		metric.WithDescription("Number of store sessions opened, by outcome"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedConnector{
		inner:    inner,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		duration: duration,
		errors:   errCounter,
		connects: connects,
	}, nil
}

// Connect opens a session on the wrapped connector. Available sessions get
// an instrumented store; the inner session's release func is kept.
func (c *InstrumentedConnector) Connect(ctx context.Context) *kv.Session {
	ctx, span := c.tracer.Start(ctx, "kv.Connect")
	defer span.End()

	sess := c.inner.Connect(ctx)
	store, ok := sess.Store()
	if !ok {
		reason := sess.Reason()
		c.connects.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", OutcomeUnavailable)))
		span.SetAttributes(attribute.String("kv.outcome", OutcomeUnavailable))
		if reason != nil {
			span.SetAttributes(attribute.String("kv.unavailable_reason", reason.Error()))
		}
		return sess
	}

	c.connects.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", OutcomeAvailable)))
	span.SetAttributes(attribute.String("kv.outcome", OutcomeAvailable))
	return kv.Available(&instrumentedStore{inner: store, conn: c}, sess.Release)
}

func (c *InstrumentedConnector) Close() error {
	return c.inner.Close()
}

// instrumentedStore records every call against the connector's instruments.
type instrumentedStore struct {
	inner kv.Store
	conn  *InstrumentedConnector
}

func (s *instrumentedStore) startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return s.conn.tracer.Start(ctx, "kv."+operation,
		trace.WithAttributes(
			attribute.String("kv.operation", operation),
			attribute.String("kv.key", key),
		),
	)
}

func (s *instrumentedStore) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.conn.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.conn.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *instrumentedStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.startSpan(ctx, "Get", key)
	start := time.Now()
	value, found, err := s.inner.Get(ctx, key)
	span.SetAttributes(attribute.Bool("kv.found", found))
	s.record(ctx, span, "Get", start, err)
	return value, found, err
}

func (s *instrumentedStore) Set(ctx context.Context, key, value string) error {
	ctx, span := s.startSpan(ctx, "Set", key)
	start := time.Now()
	err := s.inner.Set(ctx, key, value)
	s.record(ctx, span, "Set", start, err)
	return err
}

func (s *instrumentedStore) Incr(ctx context.Context, key string) (int64, error) {
	ctx, span := s.startSpan(ctx, "Incr", key)
	start := time.Now()
	n, err := s.inner.Incr(ctx, key)
	s.record(ctx, span, "Incr", start, err)
	return n, err
}

func (s *instrumentedStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, span := s.startSpan(ctx, "Expire", key)
	span.SetAttributes(attribute.String("kv.ttl", ttl.String()))
	start := time.Now()
	err := s.inner.Expire(ctx, key, ttl)
	s.record(ctx, span, "Expire", start, err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	ctx, span := s.startSpan(ctx, "Delete", key)
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.record(ctx, span, "Delete", start, err)
	return err
}
