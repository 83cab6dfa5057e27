package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	URL             string `envconfig:"DATABASE_URL"`
	MaxConns        int32  `envconfig:"DATABASE_MAX_CONNS" default:"5"`
	ConnectTimeout  int    `envconfig:"DATABASE_CONNECT_TIMEOUT" default:"5"`
	MaxConnIdleTime int    `envconfig:"DATABASE_MAX_CONN_IDLE" default:"300"`
}

// Enabled reports whether a database URL is configured.
func (c *Config) Enabled() bool {
	return c.URL != ""
}

// PoolConfig converts the config into a pgxpool configuration.
func (c *Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, err
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	pc.MaxConnIdleTime = time.Duration(c.MaxConnIdleTime) * time.Second
	pc.ConnConfig.ConnectTimeout = time.Duration(c.ConnectTimeout) * time.Second
	return pc, nil
}

func (c *Config) New(ctx context.Context) (*pgxpool.Pool, error) {
	pc, err := c.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
