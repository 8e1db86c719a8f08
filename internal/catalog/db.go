package catalog

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/medilink/internal/common"
)

// PostgresConfig holds pool settings for the Postgres backend.
type PostgresConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OpenPostgres creates a pgx pool and wraps it as a SQLStore. The pool is
// closed with the store.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*SQLStore, *pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "backend", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database url", "error", err)
		return nil, nil, fmt.Errorf("parse dsn: %w", err)
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
	pc.ConnConfig.RuntimeParams["application_name"] = "medilink"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dialCtx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, fmt.Errorf("connect: %w: %w", common.ErrDatabase, err)
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	store := NewSQLStore(dialect.Postgres, db, logger)
	store.closer = func() error {
		err := db.Close()
		pool.Close()
		return err
	}

	logger.Info("successfully connected to database", "backend", "postgres")
	return store, pool, nil
}

// OpenSQLite opens a modernc.org/sqlite database. path is a file name or a
// "file:" URI; ":memory:" works for tests.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := stdsql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w: %w", common.ErrDatabase, err)
	}
	logger.Info("successfully connected to database", "backend", "sqlite")
	return NewSQLStore(dialect.SQLite, db, logger), nil
}

// HealthCheck pings the store within timeout.
func HealthCheck(ctx context.Context, s *SQLStore, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		return fmt.Errorf("ping: %w: %w", common.ErrDatabase, err)
	}
	logger.Debug("database ping successful")
	return nil
}

// Open builds the store selected by cfg.Backend and prepares it for use.
func Open(ctx context.Context, cfg common.CatalogConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "mongo":
		s, err := OpenMongo(ctx, MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDB,
			Collection: cfg.MongoCollection,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, _, err := OpenPostgres(ctx, PostgresConfig{
			DSN:              cfg.DSN,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
			MaxConnIdleTime:  cfg.MaxConnIdleTime,
			DialTimeout:      cfg.DialTimeout,
			StatementTimeout: cfg.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, s)
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return migrated(ctx, s)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown catalog backend %q", cfg.Backend), common.ErrInvalidInput)
	}
}

func migrated(ctx context.Context, s *SQLStore) (Store, error) {
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	return s, nil
}
