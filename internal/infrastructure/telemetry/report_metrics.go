package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// ReportMetrics counts report runs and the data they processed.
type ReportMetrics struct {
	runsTotal     *Counter
	failuresTotal *Counter
	recordsTotal  *Counter
	skippedTotal  *Counter
	revenueMinor  *Counter
	runDuration   *Histogram
}

// NewReportMetrics registers the report instruments on meter.
func NewReportMetrics(meter metric.Meter) (*ReportMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	rm := &ReportMetrics{}

	var err error
	if rm.runsTotal, err = NewCounter(meter,
		"posreport_runs_total", "Total number of report runs", "{runs}"); err != nil {
		return nil, err
	}
	if rm.failuresTotal, err = NewCounter(meter,
		"posreport_failures_total", "Report runs that failed, by stage", "{runs}"); err != nil {
		return nil, err
	}
	if rm.recordsTotal, err = NewCounter(meter,
		"posreport_records_total", "Sale records aggregated", "{records}"); err != nil {
		return nil, err
	}
	if rm.skippedTotal, err = NewCounter(meter,
		"posreport_records_skipped_total", "Records skipped as malformed", "{records}"); err != nil {
		return nil, err
	}
	// Revenue is counted in minor units (paise) to stay integral
	if rm.revenueMinor, err = NewCounter(meter,
		"posreport_revenue_minor_total", "Revenue reported, in minor currency units", "{paise}"); err != nil {
		return nil, err
	}
	if rm.runDuration, err = NewHistogram(meter,
		"posreport_run_duration_seconds", "Duration of a report run", "s", RunDurationBuckets...); err != nil {
		return nil, err
	}

	return rm, nil
}

// RecordRun records a finished run with its outcome.
func (rm *ReportMetrics) RecordRun(ctx context.Context, kind string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	rm.runsTotal.Inc(ctx, AttrReportKind.String(kind), AttrStatus.String(status))
	rm.runDuration.RecordDuration(ctx, d, AttrReportKind.String(kind), AttrStatus.String(status))
}

// RecordFailure records the stage a run failed in.
func (rm *ReportMetrics) RecordFailure(ctx context.Context, kind, stage string) {
	rm.failuresTotal.Inc(ctx, AttrReportKind.String(kind), AttrStage.String(stage))
}

// RecordRecords records how many sale records were processed and skipped.
func (rm *ReportMetrics) RecordRecords(ctx context.Context, kind string, processed, skipped int) {
	rm.recordsTotal.Add(ctx, int64(processed), AttrReportKind.String(kind))
	if skipped > 0 {
		rm.skippedTotal.Add(ctx, int64(skipped), AttrReportKind.String(kind))
	}
}

// RecordRevenue adds revenue for the period, converted to minor units.
func (rm *ReportMetrics) RecordRevenue(ctx context.Context, kind string, revenue decimal.Decimal) {
	minor := revenue.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if minor <= 0 {
		return
	}
	rm.revenueMinor.Add(ctx, minor, AttrReportKind.String(kind))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewReportMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
