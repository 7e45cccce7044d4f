package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/kirana/posreport/internal/infrastructure/config"
	"github.com/kirana/posreport/internal/infrastructure/logger"
	"github.com/kirana/posreport/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	flag.StringVar(&configPath, "config", "", "Path to posreport.toml (default: search ., ./config, /etc/posreport)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	log.Info("Migration CLI started", zap.String("command", command))

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}

	case "down":
		confirmed := len(args) > 1 && (args[1] == "-confirm" || args[1] == "--confirm")
		if !confirmed {
			log.Fatal("Down drops the sales, products and stock_batches tables. Use 'migrate down -confirm' to confirm.")
		}
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println(`POS report schema tool

Creates the sales, products and stock_batches tables on a local or test
database so the report binaries can be exercised end to end.

Usage:
  migrate [flags] <command>

Commands:
  up              Apply all pending migrations
  down -confirm   Roll back all migrations (drops the tables)
  version         Show current migration version

Flags:
  -config string     Path to posreport.toml
  -log-level string  Log level: debug, info, warn, error (default: info)

Environment Variables:
  DATABASE_URL or POSREPORT_DATABASE_URL, POSREPORT_DATABASE_HOST, ...`)
}
