package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled    bool
	DBName     string // reported as db.name, default "postgres"
	LogFullSQL bool   // keep bound variables in db.statement
}

// EnableDBTracing registers the otelgorm plugin so every record source query
// becomes a child span of the running stage span.
func EnableDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	dbName := cfg.DBName
	if dbName == "" {
		dbName = "postgres"
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(dbName)}
	if !cfg.LogFullSQL {
		// Customer names appear in bound variables
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	logger.Debug("Database tracing enabled",
		zap.String("db_name", dbName),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
	)
	return nil
}
