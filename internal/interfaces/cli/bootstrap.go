package cli

import (
	"context"
	"errors"
	"fmt"

	reportapp "github.com/kirana/posreport/internal/application/report"
	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/infrastructure/config"
	"github.com/kirana/posreport/internal/infrastructure/logger"
	"github.com/kirana/posreport/internal/infrastructure/notify"
	"github.com/kirana/posreport/internal/infrastructure/persistence"
	"github.com/kirana/posreport/internal/infrastructure/render"
	"github.com/kirana/posreport/internal/infrastructure/storage"
	"github.com/kirana/posreport/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrNoChannel is returned when neither mail nor archive delivery is enabled
var ErrNoChannel = errors.New("no delivery channel configured: enable mail or archive, or use -dry-run")

// App holds the wired report pipeline and the resources it owns
type App struct {
	Service *reportapp.ReportService
	// Logger also exports to OpenTelemetry when telemetry is enabled
	Logger *zap.Logger

	closers []func(context.Context) error
	logger  *zap.Logger
}

// Close releases every resource in reverse order of acquisition
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
}

// Bootstrap wires telemetry, the database record source, the notifiers and
// the report service from cfg. On error, anything already opened is closed.
func Bootstrap(ctx context.Context, cfg *config.Config, opts Options, log *zap.Logger) (_ *App, err error) {
	app := &App{logger: log}
	defer func() {
		if err != nil {
			app.Close(ctx)
		}
	}()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.closers = append(app.closers, tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	app.closers = append(app.closers, mp.Shutdown)

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize log export: %w", err)
	}
	app.closers = append(app.closers, lp.Shutdown)
	log = lp.Bridge(log, logger.ParseLevel(cfg.Log.Level))
	app.Logger = log

	metrics, err := telemetry.NewReportMetrics(mp.Meter(telemetry.TracerName))
	if err != nil {
		return nil, fmt.Errorf("failed to register report metrics: %w", err)
	}

	notifier, err := BuildNotifier(ctx, cfg, opts, log)
	if err != nil {
		return nil, err
	}

	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.closers = append(app.closers, func(context.Context) error { return db.Close() })

	if err := telemetry.EnableDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		return nil, fmt.Errorf("failed to enable database tracing: %w", err)
	}
	if _, err := telemetry.RegisterDBMetrics(db.DB, mp, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.Enabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}, log); err != nil {
		return nil, fmt.Errorf("failed to register database metrics: %w", err)
	}

	if stats, err := db.Stats(); err == nil {
		log.Debug("Database connected", stats.Fields()...)
	}

	source := persistence.NewRecordSource(db.DB, persistence.WithSourceLogger(log))

	service, err := NewService(cfg, source, notifier, log)
	if err != nil {
		return nil, err
	}
	service.SetMetrics(metrics)
	app.Service = service

	return app, nil
}

// NewService builds the report service from the report section of cfg
func NewService(cfg *config.Config, source report.RecordSource, notifier report.Notifier, log *zap.Logger) (*reportapp.ReportService, error) {
	dailyMode, err := reportapp.ParseExportMode(cfg.Report.DailyExport)
	if err != nil {
		return nil, fmt.Errorf("report.daily_export: %w", err)
	}
	monthlyMode, err := reportapp.ParseExportMode(cfg.Report.MonthlyExport)
	if err != nil {
		return nil, fmt.Errorf("report.monthly_export: %w", err)
	}

	engine, err := render.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to load report template: %w", err)
	}

	loc := cfg.Report.Location()
	return reportapp.NewReportService(
		source,
		notifier,
		reportapp.NewExporter(cfg.Report.DateLayout, loc),
		reportapp.NewComposer(engine, reportapp.ComposerConfig{
			ShopName: cfg.Report.ShopName,
			Currency: report.NewCurrency(cfg.Report.CurrencySymbol),
		}),
		reportapp.ServiceConfig{
			TopN:     cfg.Report.TopN,
			Location: loc,
			Exports: map[report.Kind]reportapp.ExportMode{
				report.KindDaily:   dailyMode,
				report.KindMonthly: monthlyMode,
			},
		},
		log,
	), nil
}

// BuildNotifier returns the delivery fan-out for cfg. A dry run replaces
// every configured channel with the log notifier.
func BuildNotifier(ctx context.Context, cfg *config.Config, opts Options, log *zap.Logger) (*notify.MultiNotifier, error) {
	if opts.DryRun {
		return notify.NewMultiNotifier(log, notify.Channel{
			Name:     "log",
			Notifier: notify.NewLogNotifier(log, opts.OutputDir),
		}), nil
	}

	var channels []notify.Channel
	if cfg.Mail.Enabled {
		channels = append(channels, notify.Channel{
			Name:     "mail",
			Notifier: notify.NewMailNotifier(cfg.Mail, log),
		})
	}

	if cfg.Archive.Enabled {
		store, err := storage.NewS3ObjectStorage(ctx, &cfg.Archive, storage.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare archive bucket: %w", err)
		}
		channels = append(channels, notify.Channel{
			Name:     "archive",
			Notifier: notify.NewArchiveNotifier(store, cfg.Archive.Prefix, log),
		})
	}

	if len(channels) == 0 {
		return nil, ErrNoChannel
	}
	return notify.NewMultiNotifier(log, channels...), nil
}
