// Package dbx wraps the pgx connection pool and the transactional
// selection pattern every background worker shares (spec §4.1), grounded
// in the teacher's internal/db/db.go and internal/repo/postgres/jobs_repo.go.
package dbx

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, dbURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	cfg.MaxConns = maxConns

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
