package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/md-rashed-zaman/orderflow/libs/config"
)

// Pool wraps pgxpool so callers share one connection-pool type across the
// event store, the outbox and the read model.
type Pool struct {
	*pgxpool.Pool
}

// Open connects and pings. Pool sizing is tunable through DB_MAX_CONNS and
// DB_MIN_CONNS; the defaults suit a single service instance.
func Open(ctx context.Context, databaseURL string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = int32(config.Int("DB_MAX_CONNS", 10))
	cfg.MinConns = int32(config.Int("DB_MIN_CONNS", 1))
	cfg.MaxConnLifetime = config.Duration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.MaxConnIdleTime = config.Duration("DB_CONN_MAX_IDLE", 5*time.Minute)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Pool{Pool: pool}, nil
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// ReadyCheck adapts the pool ping to the /readyz probe shape.
func ReadyCheck(pool *Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil || pool.Pool == nil {
			return errors.New("db not configured")
		}
		return pool.Ping(ctx)
	}
}
