// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rideguard/rideguard-backend/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers every statement the crash pipeline
// and the admin CLI use. Prepared statements eliminate parse overhead on
// every crash event.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Crash pipeline reads
		"facilities_all":      "SELECT id, doc FROM facilities ORDER BY id",
		"device_by_id":        "SELECT doc FROM devices WHERE id = $1",
		"account_by_username": "SELECT doc FROM accounts WHERE doc->>'username' = $1 LIMIT 1",

		// Crash event records
		"crash_exists": "SELECT 1 FROM crashes WHERE crash_id = $1",
		"crash_insert": "INSERT INTO crashes (crash_id, rideguard_id, latitude, longitude, seen_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (crash_id) DO NOTHING",

		// Admin writes
		"facility_insert":   "INSERT INTO facilities (id, doc) VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc RETURNING id",
		"device_bind":       "INSERT INTO devices (id, doc) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc",
		"account_set_token": "UPDATE accounts SET doc = jsonb_set(doc, '{fcmToken}', to_jsonb($2::text)) WHERE doc->>'username' = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
