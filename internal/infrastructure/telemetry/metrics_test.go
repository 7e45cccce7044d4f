package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirana/posreport/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewReportMetrics_NilMeter(t *testing.T) {
	rm, err := telemetry.NewReportMetrics(nil)

	require.Error(t, err)
	assert.Nil(t, rm)
	assert.Equal(t, "NewReportMetrics: meter cannot be nil", err.Error())
}

func TestReportMetrics_NoopMeter(t *testing.T) {
	rm, err := telemetry.NewReportMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		rm.RecordRun(ctx, "daily", nil, time.Second)
		rm.RecordRun(ctx, "daily", errors.New("boom"), time.Second)
		rm.RecordFailure(ctx, "daily", "fetch_sales")
		rm.RecordRecords(ctx, "daily", 10, 1)
		rm.RecordRevenue(ctx, "daily", decimal.RequireFromString("12.34"))
	})
}

func TestReportMetrics_RecordsValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	rm, err := telemetry.NewReportMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordRecords(ctx, "monthly", 7, 2)
	rm.RecordRevenue(ctx, "monthly", decimal.RequireFromString("150.255"))
	rm.RecordRevenue(ctx, "monthly", decimal.Zero)

	var rmData metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rmData))

	sums := map[string]int64{}
	for _, sm := range rmData.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(7), sums["posreport_records_total"])
	assert.Equal(t, int64(2), sums["posreport_records_skipped_total"])
	assert.Equal(t, int64(15026), sums["posreport_revenue_minor_total"])
}
