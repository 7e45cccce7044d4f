package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReportMetrics_NilMeter(t *testing.T) {
	_, err := NewReportMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestReportMetrics_Record(t *testing.T) {
	reader, provider := newTestMeterReader(t)
	rm, err := NewReportMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	rm.RecordRun(ctx, "daily", nil, 2*time.Second)
	rm.RecordRun(ctx, "monthly", errors.New("smtp down"), time.Second)
	rm.RecordFailure(ctx, "monthly", "deliver")
	rm.RecordRecords(ctx, "daily", 12, 2)
	rm.RecordRecords(ctx, "daily", 3, 0)
	rm.RecordRevenue(ctx, "daily", decimal.RequireFromString("190.505"))
	rm.RecordRevenue(ctx, "daily", decimal.Zero)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["posreport_runs_total"])
	assert.Equal(t, int64(2), sums["posreport_run_duration_seconds"])
	assert.Equal(t, int64(1), sums["posreport_failures_total"])
	assert.Equal(t, int64(15), sums["posreport_records_total"])
	assert.Equal(t, int64(2), sums["posreport_records_skipped_total"])
	assert.Equal(t, int64(19051), sums["posreport_revenue_minor_total"])
}
