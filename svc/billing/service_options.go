package billing

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingkit/pkg/entitlement"
)

type serviceOptions struct {
	log         *slog.Logger
	cache       *entitlement.PremiumCache
	leaseClient *redis.Client
	now         func() time.Time
}

// Option customizes optional service dependencies.
type Option func(*serviceOptions)

// WithLogger replaces the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.log = log
	}
}

// WithPremiumCache enables the Redis-backed premium flag cache. Without it
// every entitlement read hits the stores.
func WithPremiumCache(cache *entitlement.PremiumCache) Option {
	return func(o *serviceOptions) {
		o.cache = cache
	}
}

// WithSweepLease passes a Redis client to the retry coordinator so sweeps
// are single-flight across replicas, not just within one process.
func WithSweepLease(client *redis.Client) Option {
	return func(o *serviceOptions) {
		o.leaseClient = client
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		o.now = now
	}
}
