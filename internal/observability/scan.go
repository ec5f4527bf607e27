package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScanMetrics counts scan runs by trigger and outcome, and quota denials.
type ScanMetrics struct {
	scans    metric.Int64Counter
	products metric.Int64Histogram
	denials  metric.Int64Counter
}

// NewScanMetrics registers the scan instruments on mp, or on the global
// meter provider when mp is nil.
func NewScanMetrics(mp metric.MeterProvider) (*ScanMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("scoutgate/scout")

	scans, err := meter.Int64Counter(
		"scout.scans",
		metric.WithDescription("Number of scan runs by trigger and outcome"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return nil, err
	}

	products, err := meter.Int64Histogram(
		"scout.report.products",
		metric.WithDescription("Products delivered per report"),
		metric.WithUnit("{product}"),
		metric.WithExplicitBucketBoundaries(0, 1, 3, 5, 9, 15),
	)
	if err != nil {
		return nil, err
	}

	denials, err := meter.Int64Counter(
		"scout.quota.denials",
		metric.WithDescription("Number of scan requests denied by the quota"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &ScanMetrics{scans: scans, products: products, denials: denials}, nil
}

// ScanFinished records one run. products is only recorded for delivered reports.
func (m *ScanMetrics) ScanFinished(ctx context.Context, trigger, outcome string, products int) {
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("outcome", outcome),
	)
	m.scans.Add(ctx, 1, attrs)
	if outcome == "delivered" {
		m.products.Record(ctx, int64(products), metric.WithAttributes(attribute.String("trigger", trigger)))
	}
}

func (m *ScanMetrics) QuotaDenied(ctx context.Context) {
	m.denials.Add(ctx, 1)
}
