package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PremiumCache stores the derived per-user premium flag in Redis so hot read
// paths skip the subscription/license snapshot. It is strictly a read
// optimization: writers call Set with a freshly resolved value after every
// relevant state change, and a miss means "recompute", never "not premium".
type PremiumCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// PremiumCacheConfig holds cache tuning loaded from the environment.
type PremiumCacheConfig struct {
	TTL       time.Duration `env:"PREMIUM_CACHE_TTL" envDefault:"10m"`               // TTL bounds staleness if a write-through is ever missed.
	KeyPrefix string        `env:"PREMIUM_CACHE_PREFIX" envDefault:"billingkit:prm"` // KeyPrefix namespaces cache keys.
}

// NewPremiumCache wraps an existing Redis client.
func NewPremiumCache(client *redis.Client, cfg PremiumCacheConfig) *PremiumCache {
	return &PremiumCache{
		client: client,
		ttl:    cfg.TTL,
		prefix: cfg.KeyPrefix,
	}
}

func (c *PremiumCache) key(userID uuid.UUID) string {
	return c.prefix + ":" + userID.String()
}

// Get returns the cached flag and whether it was present. Infrastructure
// errors are reported as a miss plus ErrCacheUnavailable so callers can fall
// back to recomputation.
func (c *PremiumCache) Get(ctx context.Context, userID uuid.UUID) (premium, ok bool, err error) {
	val, err := c.client.Get(ctx, c.key(userID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return false, false, nil
	case err != nil:
		return false, false, errors.Join(ErrCacheUnavailable, err)
	}
	return val == "1", true, nil
}

// Set writes a freshly resolved premium flag. Cache write failures are
// returned for logging but must never fail the write path that produced the
// value; the TTL bounds the staleness window.
func (c *PremiumCache) Set(ctx context.Context, userID uuid.UUID, premium bool) error {
	val := "0"
	if premium {
		val = "1"
	}
	if err := c.client.Set(ctx, c.key(userID), val, c.ttl).Err(); err != nil {
		return errors.Join(ErrCacheUnavailable, err)
	}
	return nil
}

// Invalidate drops the cached flag, forcing the next read to recompute.
func (c *PremiumCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return errors.Join(ErrCacheUnavailable, err)
	}
	return nil
}
