package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newTestMeterReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

// collectSums returns int64 sums and histogram counts keyed by metric name
func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return out
}

func TestNewDBMetrics(t *testing.T) {
	_, provider := newTestMeterReader(t)

	t.Run("nil meter is rejected", func(t *testing.T) {
		_, err := NewDBMetrics(nil, DBMetricsConfig{})
		require.Error(t, err)
	})

	t.Run("applies default threshold", func(t *testing.T) {
		m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{Enabled: true})
		require.NoError(t, err)
		assert.Equal(t, DefaultSlowQueryThreshold, m.config.SlowQueryThreshold)
	})
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	reader, provider := newTestMeterReader(t)

	m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordQuery(ctx, "select", "sales", 20*time.Millisecond, nil)
	m.RecordQuery(ctx, "SELECT", "products", 250*time.Millisecond, nil)
	m.RecordQuery(ctx, "", "", time.Millisecond, errors.New("connection reset"))

	sums := collectSums(t, reader)
	assert.Equal(t, int64(3), sums["posreport_db_query_total"])
	assert.Equal(t, int64(3), sums["posreport_db_query_duration_seconds"])
	assert.Equal(t, int64(1), sums["posreport_db_slow_query_total"])
	assert.Equal(t, int64(1), sums["posreport_db_query_errors_total"])
}

func TestDBMetricsPlugin(t *testing.T) {
	reader, provider := newTestMeterReader(t)
	m, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{Enabled: true})
	require.NoError(t, err)

	db := setupTestDB(t)
	require.NoError(t, db.Use(NewDBMetricsPlugin(m)))

	var rows []tracedSale
	require.NoError(t, db.Find(&rows).Error)
	var n int64
	require.NoError(t, db.Raw("SELECT count(*) FROM traced_sales").Scan(&n).Error)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["posreport_db_query_total"])
	assert.Equal(t, "posreport:db_metrics", NewDBMetricsPlugin(m).Name())
}

func TestDetectOperationType(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM sales":        "SELECT",
		"  select id from products":  "SELECT",
		"INSERT INTO sales VALUES ()": "INSERT",
		"update sales set total = 1": "UPDATE",
		"DELETE FROM sales":          "DELETE",
		"WITH x AS (SELECT 1)":       "OTHER",
	}
	for sql, want := range tests {
		assert.Equal(t, want, detectOperationType(sql), sql)
	}
}

func TestRegisterDBMetrics(t *testing.T) {
	db := setupTestDB(t)

	t.Run("disabled returns nil", func(t *testing.T) {
		m, err := RegisterDBMetrics(db, &MeterProvider{config: MetricsConfig{Enabled: true}}, DBMetricsConfig{}, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("non-exporting provider returns nil", func(t *testing.T) {
		mp, err := NewMeterProvider(context.Background(), MetricsConfig{Enabled: false}, zap.NewNop())
		require.NoError(t, err)

		m, err := RegisterDBMetrics(db, mp, DBMetricsConfig{Enabled: true}, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("installs the plugin", func(t *testing.T) {
		_, sdkProvider := newTestMeterReader(t)
		mp := &MeterProvider{provider: sdkProvider, logger: zap.NewNop(), config: MetricsConfig{Enabled: true}}

		m, err := RegisterDBMetrics(db, mp, DBMetricsConfig{Enabled: true}, zap.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, m)
		assert.Contains(t, db.Config.Plugins, "posreport:db_metrics")
	})
}
