package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgreDB struct {
	Pool     *pgxpool.Pool
	DBConfig *pgxpool.Config
}

type Config interface {
	GetDSN() string
}

// PoolLimits is implemented by configs that tune the pool. Zero values keep pgx defaults.
type PoolLimits interface {
	PoolLimits() (maxConns, minConns int32, maxLifetime, maxIdle time.Duration)
}

func New(ctx context.Context, config Config) (*PostgreDB, error) {
	dbConfig, err := pgxpool.ParseConfig(config.GetDSN())
	if err != nil {
		return nil, err
	}

	if limits, ok := config.(PoolLimits); ok {
		applyLimits(dbConfig, limits)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, err
	}

	// Ping the database
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgreDB{
		Pool:     pool,
		DBConfig: dbConfig,
	}, nil
}

func applyLimits(cfg *pgxpool.Config, limits PoolLimits) {
	maxConns, minConns, lifetime, idle := limits.PoolLimits()
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 && minConns <= cfg.MaxConns {
		cfg.MinConns = minConns
	}
	if lifetime > 0 {
		cfg.MaxConnLifetime = lifetime
	}
	if idle > 0 {
		cfg.MaxConnIdleTime = idle
	}
}

func (db *PostgreDB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *PostgreDB) Close() {
	db.Pool.Close()
}
