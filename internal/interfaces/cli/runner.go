// Package cli is the shared entry point of the daily and monthly report
// binaries: flag parsing, bootstrap and exit-code mapping.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/infrastructure/config"
	"github.com/kirana/posreport/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Process exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// DateLayout is the format of the -date flag
const DateLayout = "2006-01-02"

// shutdownTimeout bounds how long flushing telemetry and closing the
// database may take after the run
const shutdownTimeout = 10 * time.Second

// Options are the command-line options shared by both binaries
type Options struct {
	Date       string
	DryRun     bool
	ConfigPath string
	OutputDir  string
}

// UsageError marks a command-line mistake
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ParseFlags parses args for the binary of kind
func ParseFlags(kind report.Kind, args []string, output io.Writer) (Options, error) {
	var opts Options

	fs := flag.NewFlagSet(string(kind)+"-report", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.Date, "date", "", "Run as if today were this date (YYYY-MM-DD)")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Log the report instead of sending it")
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to posreport.toml (default: search ., ./config, /etc/posreport)")
	fs.StringVar(&opts.OutputDir, "out", "", "With -dry-run, write the report and attachments to this directory")
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: %s-report [flags]\n\nBuilds and delivers the %s sales report.\n\nFlags:\n", kind, kind)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, err
		}
		return opts, &UsageError{Err: err}
	}
	if fs.NArg() > 0 {
		return opts, &UsageError{Err: fmt.Errorf("unexpected arguments: %v", fs.Args())}
	}
	if opts.OutputDir != "" && !opts.DryRun {
		return opts, &UsageError{Err: errors.New("-out requires -dry-run")}
	}
	if opts.Date != "" {
		if _, err := time.Parse(DateLayout, opts.Date); err != nil {
			return opts, &UsageError{Err: fmt.Errorf("invalid -date %q, expected YYYY-MM-DD", opts.Date)}
		}
	}
	return opts, nil
}

// Now returns the instant the run treats as "now": the start of -date in
// loc when set, otherwise clock().
func (o Options) Now(loc *time.Location, clock func() time.Time) (time.Time, error) {
	if o.Date == "" {
		return clock().In(loc), nil
	}
	t, err := time.ParseInLocation(DateLayout, o.Date, loc)
	if err != nil {
		return time.Time{}, &UsageError{Err: fmt.Errorf("invalid -date %q: %w", o.Date, err)}
	}
	return t, nil
}

// ExitCode maps a run error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsage
	}
	return ExitFailure
}

// Run executes the report of kind and returns the process exit status
func Run(kind report.Kind, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, kind, args, os.Stderr)
}

// RunContext is Run with an explicit context and error output
func RunContext(ctx context.Context, kind report.Kind, args []string, stderr io.Writer) int {
	kind, err := report.ParseKind(string(kind))
	if err != nil {
		fmt.Fprintf(stderr, "posreport: %v\n", err)
		return ExitUsage
	}

	opts, err := ParseFlags(kind, args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		fmt.Fprintf(stderr, "%s-report: %v\n", kind, err)
		return ExitUsage
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "%s-report: failed to load configuration: %v\n", kind, err)
		return ExitFailure
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(stderr, "%s-report: failed to initialize logger: %v\n", kind, err)
		return ExitFailure
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	now, err := opts.Now(cfg.Report.Location(), time.Now)
	if err != nil {
		log.Error("Invalid run date", zap.Error(err))
		return ExitCode(err)
	}

	app, err := Bootstrap(ctx, cfg, opts, log)
	if err != nil {
		log.Error("Failed to start report run", zap.Error(err))
		return ExitFailure
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		app.Close(shutdownCtx)
	}()

	result, err := app.Service.RunAt(ctx, kind, now)
	if err != nil {
		var stageErr *report.StageError
		if errors.As(err, &stageErr) {
			fmt.Fprintf(stderr, "%s-report: %s stage failed: %v\n", kind, stageErr.Stage, stageErr.Err)
		} else {
			fmt.Fprintf(stderr, "%s-report: %v\n", kind, err)
		}
		return ExitCode(err)
	}

	app.Logger.Info("Report run complete",
		zap.String("run_id", result.RunID),
		zap.String("period", result.Report.Period.Label),
		zap.Bool("dry_run", opts.DryRun),
	)
	return ExitOK
}
