package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestScanMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewScanMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.ScanFinished(ctx, "gated", "delivered", 9)
	m.ScanFinished(ctx, "scheduled", "delivered", 4)
	m.ScanFinished(ctx, "gated", "scan_failed", 0)
	m.QuotaDenied(ctx)
	m.QuotaDenied(ctx)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	got := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			got[md.Name] = md.Data
		}
	}

	scans, ok := got["scout.scans"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range scans.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, scans.DataPoints, 3)

	products, ok := got["scout.report.products"].(metricdata.Histogram[int64])
	require.True(t, ok)
	var count uint64
	var sum int64
	for _, dp := range products.DataPoints {
		count += dp.Count
		sum += dp.Sum
	}
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, int64(13), sum)

	denials, ok := got["scout.quota.denials"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, denials.DataPoints, 1)
	assert.Equal(t, int64(2), denials.DataPoints[0].Value)
}
