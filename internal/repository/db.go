package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is an open database handle plus the SQL dialect its queries are built for.
type DB struct {
	SQL     *sql.DB
	Dialect string // dialect.Postgres | dialect.SQLite
	pool    *pgxpool.Pool
}

// IsPostgresDSN reports whether dsn points at PostgreSQL; anything else is
// treated as a SQLite path or file: URI.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to PostgreSQL through a pgx pool, or opens a SQLite file.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if IsPostgresDSN(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "matcert-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	dialCtx, cancel := withOptionalTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB so one query layer serves both dialects
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{SQL: db, Dialect: dialect.Postgres, pool: pool}, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := sqliteDSN(cfg.DSN)
	logger.Info("opening database", "dialect", dialect.SQLite, "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return nil, err
	}
	// one connection: in-memory databases are per-connection and writers
	// serialize anyway
	db.SetMaxOpenConns(1)

	pingCtx, cancel := withOptionalTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		logger.Error("failed to open database", "error", err)
		return nil, err
	}
	return &DB{SQL: db, Dialect: dialect.SQLite}, nil
}

// sqliteDSN turns a path, sqlite:// URL or file: URI into a modernc DSN with
// foreign keys on and a busy timeout.
func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if dsn == "" {
		dsn = "matcert.db"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the database connections gracefully
func Close(db *DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if err := db.SQL.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()
	if err := db.SQL.PingContext(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

func (db *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(db.Dialect)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
