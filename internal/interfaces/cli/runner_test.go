package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		want      Options
		wantUsage bool
	}{
		{name: "no flags", args: nil, want: Options{}},
		{
			name: "all flags",
			args: []string{"-date", "2024-01-02", "-dry-run", "-config", "/tmp/p.toml", "-out", "/tmp/out"},
			want: Options{Date: "2024-01-02", DryRun: true, ConfigPath: "/tmp/p.toml", OutputDir: "/tmp/out"},
		},
		{name: "bad date", args: []string{"-date", "02/01/2024"}, wantUsage: true},
		{name: "impossible date", args: []string{"-date", "2024-02-30"}, wantUsage: true},
		{name: "unknown flag", args: []string{"-weekly"}, wantUsage: true},
		{name: "positional argument", args: []string{"extra"}, wantUsage: true},
		{name: "out without dry run", args: []string{"-out", "/tmp/out"}, wantUsage: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := ParseFlags(report.KindDaily, tt.args, &out)
			if tt.wantUsage {
				require.Error(t, err)
				assert.Equal(t, ExitUsage, ExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("help is not a usage error", func(t *testing.T) {
		var out bytes.Buffer
		_, err := ParseFlags(report.KindMonthly, []string{"-h"}, &out)
		assert.ErrorIs(t, err, flag.ErrHelp)
		assert.Contains(t, out.String(), "monthly sales report")
		assert.Contains(t, out.String(), "-dry-run")
	})
}

func TestOptions_Now(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	clock := func() time.Time { return time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC) }

	t.Run("clock in the report zone", func(t *testing.T) {
		now, err := Options{}.Now(ist, clock)
		require.NoError(t, err)
		assert.Equal(t, 16, now.Day())
		assert.Equal(t, ist, now.Location())
	})

	t.Run("date flag starts the day in the report zone", func(t *testing.T) {
		now, err := Options{Date: "2024-01-02"}.Now(ist, clock)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, ist), now)
	})

	t.Run("invalid date is a usage error", func(t *testing.T) {
		_, err := Options{Date: "yesterday"}.Now(time.UTC, clock)
		assert.Equal(t, ExitUsage, ExitCode(err))
	})
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitUsage, ExitCode(&UsageError{Err: errors.New("bad flag")}))
	assert.Equal(t, ExitFailure, ExitCode(report.NewStageError(report.StageFetchSales, report.ErrDataUnavailable)))
	assert.Equal(t, ExitFailure, ExitCode(fmt.Errorf("wrapped: %w", report.ErrDeliveryFailed)))
}

func testConfig() *config.Config {
	return &config.Config{
		Report: config.ReportConfig{
			ShopName:      "Veda Kirana",
			Timezone:      "UTC",
			TopN:          5,
			DailyExport:   config.ExportInventory,
			MonthlyExport: config.ExportLedger,
		},
	}
}

func TestBuildNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("dry run uses only the log channel", func(t *testing.T) {
		cfg := testConfig()
		cfg.Mail = config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587, From: "a@b.c", To: []string{"a@b.c"}}

		n, err := BuildNotifier(ctx, cfg, Options{DryRun: true}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 1, n.Len())
	})

	t.Run("mail channel", func(t *testing.T) {
		cfg := testConfig()
		cfg.Mail = config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587, From: "a@b.c", To: []string{"a@b.c"}}

		n, err := BuildNotifier(ctx, cfg, Options{}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 1, n.Len())
	})

	t.Run("nothing enabled", func(t *testing.T) {
		_, err := BuildNotifier(ctx, testConfig(), Options{}, zap.NewNop())
		assert.ErrorIs(t, err, ErrNoChannel)
	})

	t.Run("archive with invalid settings", func(t *testing.T) {
		cfg := testConfig()
		cfg.Archive = config.ArchiveConfig{Enabled: true, Bucket: "reports"}

		_, err := BuildNotifier(ctx, cfg, Options{}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive storage")
	})
}

func TestNewService(t *testing.T) {
	t.Run("valid report settings", func(t *testing.T) {
		svc, err := NewService(testConfig(), nil, nil, zap.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("unknown export mode", func(t *testing.T) {
		cfg := testConfig()
		cfg.Report.MonthlyExport = "pdf"
		_, err := NewService(cfg, nil, nil, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report.monthly_export")
	})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posreport.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunContext(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "POSREPORT_DATABASE_URL", "EMAIL_USER", "EMAIL_PASS"} {
		t.Setenv(key, "")
	}
	ctx := context.Background()

	t.Run("usage error exits 2", func(t *testing.T) {
		var stderr bytes.Buffer
		code := RunContext(ctx, report.KindDaily, []string{"-date", "tomorrow"}, &stderr)
		assert.Equal(t, ExitUsage, code)
		assert.Contains(t, stderr.String(), "invalid -date")
	})

	t.Run("unknown report kind exits 2", func(t *testing.T) {
		var stderr bytes.Buffer
		code := RunContext(ctx, report.Kind("weekly"), nil, &stderr)
		assert.Equal(t, ExitUsage, code)
		assert.Contains(t, stderr.String(), "expected daily or monthly")
	})

	t.Run("help exits 0", func(t *testing.T) {
		var stderr bytes.Buffer
		assert.Equal(t, ExitOK, RunContext(ctx, report.KindDaily, []string{"-help"}, &stderr))
	})

	t.Run("missing config file exits 1", func(t *testing.T) {
		var stderr bytes.Buffer
		code := RunContext(ctx, report.KindMonthly, []string{"-config", filepath.Join(t.TempDir(), "absent.toml")}, &stderr)
		assert.Equal(t, ExitFailure, code)
		assert.Contains(t, stderr.String(), "failed to load configuration")
	})

	t.Run("no delivery channel exits 1", func(t *testing.T) {
		path := writeConfig(t, "[log]\nlevel = \"error\"\noutput = \"stderr\"\n")
		var stderr bytes.Buffer
		assert.Equal(t, ExitFailure, RunContext(ctx, report.KindDaily, []string{"-config", path}, &stderr))
	})

	t.Run("unreachable database exits 1", func(t *testing.T) {
		path := writeConfig(t, `
[log]
level = "error"
output = "stderr"

[database]
host = "127.0.0.1"
port = 1
user = "postgres"
dbname = "postgres"
sslmode = "disable"
`)
		var stderr bytes.Buffer
		assert.Equal(t, ExitFailure, RunContext(ctx, report.KindDaily, []string{"-config", path, "-dry-run"}, &stderr))
	})
}
