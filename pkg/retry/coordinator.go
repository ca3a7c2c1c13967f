package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingkit/pkg/eventstore"
)

var (
	// ErrSweepInProgress means another sweep holds the single-flight guard.
	ErrSweepInProgress = errors.New("retry sweep already in progress")
)

// Processor reprocesses one claimed event through the normalize/apply
// pipeline, including marking its final status. The billing service is the
// canonical implementation.
type Processor interface {
	Process(ctx context.Context, event eventstore.Event) error
}

// Config holds sweep tuning loaded from the environment.
type Config struct {
	BatchSize   int           `env:"RETRY_BATCH_SIZE" envDefault:"100"`          // BatchSize caps how many events one sweep claims.
	MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`          // MaxAttempts bounds processing attempts per event.
	LeaseKey    string        `env:"RETRY_LEASE_KEY" envDefault:"billingkit:rs"` // LeaseKey names the cross-instance lease.
	LeaseTTL    time.Duration `env:"RETRY_LEASE_TTL" envDefault:"2m"`            // LeaseTTL bounds how long a crashed sweep blocks the next one.
}

// Report summarizes one sweep for the operator who triggered it.
type Report struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Coordinator claims and reprocesses retryable events.
type Coordinator struct {
	store     eventstore.Store
	processor Processor
	cfg       Config
	log       *slog.Logger
	lease     *redis.Client // nil disables the cross-instance lease
	running   atomic.Bool
}

// CoordinatorOption configures optional coordinator dependencies.
type CoordinatorOption func(*Coordinator)

// WithLease enables the cross-instance single-flight lease on the given
// Redis client.
func WithLease(client *redis.Client) CoordinatorOption {
	return func(c *Coordinator) { c.lease = client }
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCoordinator creates the retry coordinator. Panics on nil required
// dependencies to fail fast during initialization.
func NewCoordinator(store eventstore.Store, processor Processor, cfg Config, opts ...CoordinatorOption) *Coordinator {
	if store == nil {
		panic("retry: eventstore.Store is required")
	}
	if processor == nil {
		panic("retry: Processor is required")
	}

	c := &Coordinator{
		store:     store,
		processor: processor,
		cfg:       cfg,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sweep claims one batch of retryable events and reprocesses them. Returns
// ErrSweepInProgress when another sweep (local or another instance holding
// the lease) is active. Per-event failures land in the report, not in the
// returned error.
func (c *Coordinator) Sweep(ctx context.Context) (Report, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Report{}, ErrSweepInProgress
	}
	defer c.running.Store(false)

	if c.lease != nil {
		ok, err := c.lease.SetNX(ctx, c.cfg.LeaseKey, "1", c.cfg.LeaseTTL).Result()
		if err != nil {
			return Report{}, fmt.Errorf("acquire sweep lease: %w", err)
		}
		if !ok {
			return Report{}, ErrSweepInProgress
		}
		defer func() {
			if err := c.lease.Del(context.WithoutCancel(ctx), c.cfg.LeaseKey).Err(); err != nil {
				c.log.ErrorContext(ctx, "release sweep lease failed", slog.Any("error", err))
			}
		}()
	}

	// The lease TTL doubles as the staleness bound for claims orphaned by a
	// sweep that died mid-batch.
	events, err := c.store.ClaimRetryable(ctx, c.cfg.BatchSize, c.cfg.MaxAttempts, c.cfg.LeaseTTL)
	if err != nil {
		return Report{}, fmt.Errorf("claim retryable events: %w", err)
	}

	report := Report{Attempted: len(events)}
	for _, event := range events {
		if err := c.processor.Process(ctx, event); err != nil {
			report.Failed++
			c.log.WarnContext(ctx, "retry processing failed",
				slog.String("event_id", event.ID.String()),
				slog.String("provider", string(event.Provider)),
				slog.Int("attempts", event.Attempts),
				slog.Any("error", err),
			)
			continue
		}
		report.Succeeded++
	}

	c.log.InfoContext(ctx, "retry sweep finished",
		slog.Int("attempted", report.Attempted),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}
