package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/gosettle/internal/core/config"
)

// ConnectDB initializes the connection pool.
func ConnectDB(ctx context.Context, cfg config.Database, logger *slog.Logger) (*pgxpool.Pool, error) {
	// 1. Check URL
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	// 2. Parse Config
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	// 3. Configure Pool Settings
	// Allow scaling to zero; serverless Postgres opens connections fast.
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	// 4. Connect
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// 5. Test Connection (Ping)
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	logger.Info("✅ Successfully connected to Postgres", "max_conns", poolCfg.MaxConns)
	return pool, nil
}
