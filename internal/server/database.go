package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/matcert-extractor/internal/common"
	repo "github.com/joseph-ayodele/matcert-extractor/internal/repository"
)

// ConnectDB opens the configured database, checks it and applies the schema.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "postgres", repo.IsPostgresDSN(cfg.DSN))
	db, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime.Std(),
		MaxConnIdleTime:  cfg.MaxConnIdleTime.Std(),
		DialTimeout:      cfg.DialTimeout.Std(),
		StatementTimeout: cfg.StatementTimeout.Std(),
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if err := repo.HealthCheck(ctx, db, cfg.DialTimeout.Std(), logger); err != nil {
		repo.Close(db, logger)
		return nil, err
	}
	if err := repo.Migrate(ctx, db); err != nil {
		logger.Error("schema migration failed", "error", err)
		repo.Close(db, logger)
		return nil, err
	}
	logger.Info("database ready", "dialect", db.Dialect)
	return db, nil
}
