package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrFailedToParseConfig = errors.New("failed to parse postgres config")
	ErrConnectionFailed    = errors.New("failed to open postgres connection")
	ErrHealthcheckFailed   = errors.New("postgres healthcheck failed")
)

// Config holds connection settings loaded from the environment.
type Config struct {
	ConnectionString string        `env:"PG_CONN_URL,required"`              // postgres:// connection URL
	MaxOpenConns     int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"` // upper bound on pooled connections
	MaxIdleConns     int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`  // connections kept warm
	RetryAttempts    int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`  // startup connection attempts
	RetryInterval    time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"` // base delay between attempts
}

// Connect opens a pgx pool, retrying with a growing delay so a database that
// is still booting does not kill the service at startup.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConfig, err)
	}
	poolCfg.MaxConns = cfg.MaxOpenConns
	poolCfg.MinConns = cfg.MaxIdleConns

	var lastErr error
	for attempt := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrConnectionFailed, lastErr)
}

// Healthcheck adapts a pool ping to the func(ctx) error shape health
// endpoints expect.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
