// Package backend builds the configured storage stack: it opens and bounds
// the connection pool, verifies the schema, and wires the repository,
// services and optional event publisher together. The result is injected
// into the server; nothing here is process-global state.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"expensed/internal/amqp"
	"expensed/internal/config"
	"expensed/internal/services"
	"expensed/internal/storage"
)

// Result is the assembled backend plus its teardown.
type Result struct {
	Expenses *services.ExpenseService
	Reports  *services.ReportService

	// DB backs the readiness probe; handlers never use it directly.
	DB *sql.DB

	Cleanup func() error
}

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateBackend opens the configured store, bounds the pool, runs
// migrations and wires the services. A schema failure here is fatal to
// startup: the service must not serve against an unverified schema.
func (f *Factory) CreateBackend(ctx context.Context, cfg *config.Config) (*Result, error) {
	db, dialect, err := f.openDB(cfg)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.PoolMaxConns)
	db.SetMaxIdleConns(cfg.PoolMinConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := storage.RunMigrations(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	repo := storage.NewRepository(db, dialect)

	// Event publishing is optional; a missing broker downgrades to
	// storage-only operation rather than failing startup.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			events = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	f.logger.Info("Initialized database backend",
		"backend", cfg.DBBackend,
		"identity", cfg.BackendIdentity(),
		"pool_max_conns", cfg.PoolMaxConns,
		"pool_min_conns", cfg.PoolMinConns,
		"events_enabled", events != nil)

	cleanup := func() error {
		var firstErr error
		if events != nil {
			if err := events.Close(); err != nil {
				firstErr = fmt.Errorf("close amqp: %w", err)
			}
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close database: %w", err)
		}
		return firstErr
	}

	return &Result{
		Expenses: services.NewExpenseService(repo, events),
		Reports:  services.NewReportService(repo),
		DB:       db,
		Cleanup:  cleanup,
	}, nil
}

func (f *Factory) openDB(cfg *config.Config) (*sql.DB, storage.Dialect, error) {
	switch cfg.DBBackend {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0755); err != nil {
			return nil, "", fmt.Errorf("create db directory: %w", err)
		}
		db, err := sql.Open("sqlite", cfg.SQLiteDBPath)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite database: %w", err)
		}
		return db, storage.DialectSQLite, nil

	case "postgres":
		db, err := sql.Open("pgx", postgresDSN(cfg))
		if err != nil {
			return nil, "", fmt.Errorf("open postgres database: %w", err)
		}
		return db, storage.DialectPostgres, nil

	default:
		return nil, "", fmt.Errorf("unsupported database backend: %s", cfg.DBBackend)
	}
}

func postgresDSN(cfg *config.Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:   net.JoinHostPort(cfg.DBHost, cfg.DBPort),
		Path:   cfg.DBName,
	}
	return u.String()
}
