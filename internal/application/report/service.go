package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/infrastructure/logger"
	"github.com/kirana/posreport/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServiceConfig holds the per-kind settings of the report pipeline
type ServiceConfig struct {
	TopN     int
	Location *time.Location
	Exports  map[report.Kind]ExportMode
}

// ExportFor returns the export mode for kind. Daily defaults to inventory,
// everything else to the ledger.
func (c ServiceConfig) ExportFor(kind report.Kind) ExportMode {
	if mode, ok := c.Exports[kind]; ok {
		return mode
	}
	if kind == report.KindDaily {
		return ExportInventory
	}
	return ExportLedger
}

// RunResult describes a delivered report
type RunResult struct {
	RunID           string
	Report          *report.Report
	Message         report.Message
	SkippedSales    []string
	SkippedProducts []string
}

// ReportService runs the report pipeline:
// resolve period, fetch, aggregate, rank, export, compose, deliver.
type ReportService struct {
	source   report.RecordSource
	notifier report.Notifier
	exporter *Exporter
	composer *Composer
	config   ServiceConfig
	logger   *zap.Logger
	metrics  *telemetry.ReportMetrics
	newRunID func() string
}

// NewReportService creates a new ReportService
func NewReportService(
	source report.RecordSource,
	notifier report.Notifier,
	exporter *Exporter,
	composer *Composer,
	cfg ServiceConfig,
	logger *zap.Logger,
) *ReportService {
	if cfg.TopN <= 0 {
		cfg.TopN = report.DefaultTopN
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ReportService{
		source:   source,
		notifier: notifier,
		exporter: exporter,
		composer: composer,
		config:   cfg,
		logger:   logger,
		newRunID: func() string { return uuid.New().String() },
	}
}

// SetMetrics sets the report metrics collector
func (s *ReportService) SetMetrics(m *telemetry.ReportMetrics) {
	s.metrics = m
}

// fetched holds the results of the concurrent fetch stage
type fetched struct {
	sales    []report.SaleRecord
	products []report.ProductSnapshot
}

// RunAt produces and delivers the report of kind for the period containing
// now. Any failure is returned as a *report.StageError and nothing is
// delivered unless every earlier stage succeeded.
func (s *ReportService) RunAt(ctx context.Context, kind report.Kind, now time.Time) (result *RunResult, err error) {
	start := time.Now()
	runID := s.newRunID()
	ctx, _ = logger.WithRunID(ctx, s.logger, runID)
	ctx, _ = logger.WithReportKind(ctx, logger.FromContext(ctx), string(kind))

	ctx, span := telemetry.StartSpan(ctx, "report.run",
		telemetry.SpanAttrRunID, runID,
		telemetry.SpanAttrKind, string(kind),
	)
	defer span.End()

	defer func() {
		if s.metrics != nil {
			s.metrics.RecordRun(ctx, string(kind), err, time.Since(start))
		}
		if err != nil {
			telemetry.RecordError(span, err)
			var stageErr *report.StageError
			if errors.As(err, &stageErr) && s.metrics != nil {
				s.metrics.RecordFailure(ctx, string(kind), stageErr.Stage)
			}
			logger.L(ctx).Error("Report run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return
		}
		telemetry.SetOK(span)
	}()

	period, err := report.ResolvePeriod(now, kind, s.config.Location)
	if err != nil {
		return nil, report.NewStageError(report.StageResolvePeriod, err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrPeriod, period.Label)

	log := logger.L(ctx)
	log.Info("Report run started",
		zap.String("period", period.Label),
		zap.Time("start", period.Start),
		zap.Bool("open_ended", period.IsOpenEnded()),
	)

	mode := s.config.ExportFor(kind)
	data, err := s.fetch(ctx, period, mode)
	if err != nil {
		return nil, err
	}

	agg := report.Aggregate(data.sales)
	for _, id := range agg.SkippedItemRecords {
		log.Warn("Sale items skipped", zap.String("sale_id", id))
	}
	if s.metrics != nil {
		s.metrics.RecordRecords(ctx, string(kind), len(data.sales), len(agg.SkippedItemRecords))
		s.metrics.RecordRevenue(ctx, string(kind), agg.TotalRevenue)
	}

	rep := &report.Report{
		Period:           period,
		TotalRevenue:     agg.TotalRevenue,
		TransactionCount: agg.TransactionCount,
		ItemsSold:        agg.ItemsSold,
		Products:         agg.Products.Entries(),
		TopItems:         report.TopSellers(agg.Products, s.config.TopN),
	}

	skippedProducts, err := s.export(ctx, rep, mode, data)
	if err != nil {
		return nil, err
	}

	msg, err := s.composer.Compose(rep, len(agg.SkippedItemRecords), runID)
	if err != nil {
		return nil, report.NewStageError(report.StageCompose, err)
	}

	if err := s.deliver(ctx, msg); err != nil {
		return nil, err
	}

	log.Info("Report delivered",
		zap.String("period", period.Label),
		zap.Int("records_processed", len(data.sales)),
		zap.Int("records_skipped", len(agg.SkippedItemRecords)),
		zap.Int("transactions", rep.TransactionCount),
		zap.String("total_revenue", report.FormatAmount(rep.TotalRevenue)),
		zap.Int("distinct_products", len(rep.Products)),
		zap.Int("attachment_bytes", len(rep.Export.Content)),
		zap.Duration("duration", time.Since(start)),
	)

	return &RunResult{
		RunID:           runID,
		Report:          rep,
		Message:         msg,
		SkippedSales:    agg.SkippedItemRecords,
		SkippedProducts: skippedProducts,
	}, nil
}

// fetch reads sales and, for the inventory export, products concurrently.
// Either failure cancels the other fetch and aborts the run.
func (s *ReportService) fetch(ctx context.Context, period report.Period, mode ExportMode) (*fetched, error) {
	var data fetched
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ctx, span := telemetry.StartSpan(gctx, "report.fetch_sales", telemetry.SpanAttrPeriod, period.Label)
		defer span.End()

		sales, err := s.source.FetchSales(ctx, period)
		if err != nil {
			telemetry.RecordError(span, err)
			return report.NewStageError(report.StageFetchSales, err)
		}
		telemetry.SetAttributes(span, telemetry.SpanAttrRecordCount, len(sales))
		telemetry.SetOK(span)
		data.sales = sales
		return nil
	})

	if mode == ExportInventory {
		g.Go(func() error {
			ctx, span := telemetry.StartSpan(gctx, "report.fetch_products")
			defer span.End()

			products, err := s.source.FetchProducts(ctx)
			if err != nil {
				telemetry.RecordError(span, err)
				return report.NewStageError(report.StageFetchProducts, err)
			}
			telemetry.SetAttributes(span, telemetry.SpanAttrProductCount, len(products))
			telemetry.SetOK(span)
			data.products = products
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.L(ctx).Debug("Report data fetched",
		zap.Int("sales", len(data.sales)),
		zap.Int("products", len(data.products)),
	)
	return &data, nil
}

// export renders the attachment for mode onto rep and returns the IDs of
// products left out of an inventory snapshot.
func (s *ReportService) export(ctx context.Context, rep *report.Report, mode ExportMode, data *fetched) ([]string, error) {
	_, span := telemetry.StartSpan(ctx, "report.export")
	defer span.End()

	var skipped []string
	switch mode {
	case ExportLedger:
		rep.Export = LedgerAttachment(rep.Period, s.exporter.Ledger(data.sales))
	case ExportInventory:
		var content []byte
		content, skipped = s.exporter.Inventory(data.products)
		rep.Export = InventoryAttachment(rep.Period, content)
		for _, id := range skipped {
			logger.L(ctx).Warn("Product without a name left out of inventory export", zap.String("product_id", id))
		}
	default:
		err := report.NewStageError(report.StageExport, errors.New("unknown export mode "+string(mode)))
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrFilename, rep.Export.Filename)
	telemetry.SetOK(span)
	return skipped, nil
}

func (s *ReportService) deliver(ctx context.Context, msg report.Message) error {
	ctx, span := telemetry.StartSpan(ctx, "report.deliver")
	defer span.End()

	if err := s.notifier.Deliver(ctx, msg); err != nil {
		telemetry.RecordError(span, err)
		if !errors.Is(err, report.ErrDeliveryFailed) {
			err = errors.Join(report.ErrDeliveryFailed, err)
		}
		return report.NewStageError(report.StageDeliver, err)
	}
	telemetry.SetOK(span)
	return nil
}
