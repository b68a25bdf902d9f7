package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-crm/internal/docstore"
	"github.com/odyssey-erp/odyssey-crm/internal/inventory"
	"github.com/odyssey-erp/odyssey-crm/internal/leads"
	"github.com/odyssey-erp/odyssey-crm/internal/ledger"
	"github.com/odyssey-erp/odyssey-crm/internal/observability"
	"github.com/odyssey-erp/odyssey-crm/internal/orders"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Container holds the wired services shared by the server, worker and CLI.
type Container struct {
	Store       docstore.Store
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Audit       *shared.AuditLogger
	Idempotency *shared.IdempotencyStore
	Sequence    sequence.Generator
	Inventory   *inventory.Service
	Ledger      *ledger.Service
	Leads       *leads.Service
	Orders      *orders.Service

	logger *slog.Logger
}

// Options adjusts container construction.
type Options struct {
	// Domain receives order, stock and revenue counts. Nil skips them.
	Domain *observability.Domain
	// Store overrides the configured document store.
	Store docstore.Store
	// Redis overrides the configured Redis client.
	Redis *redis.Client
}

// NewContainer opens the configured backends and wires every service.
func NewContainer(ctx context.Context, cfg *Config, logger *slog.Logger, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{logger: logger, Store: opts.Store, Redis: opts.Redis}

	if c.Store == nil {
		switch cfg.StoreDriver {
		case DriverPostgres:
			pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
			if err != nil {
				return nil, err
			}
			pg := docstore.NewPostgres(pool)
			if err := pg.Migrate(ctx); err != nil {
				pool.Close()
				return nil, err
			}
			c.Pool = pool
			c.Store = pg
		default:
			c.Store = docstore.NewMemory()
		}
	}

	if c.Redis == nil && cfg.NeedsRedis() {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Redis = client
	}

	var locker lock.Locker = lock.Noop{}
	if cfg.OrderLocks {
		locker = lock.NewRedis(c.Redis, lock.RedisConfig{TTL: cfg.OrderLockTTL, Retries: 10}, logger)
	}

	storeSeq := sequence.NewStore(c.Store, sequence.OrdersCounter, locker)
	c.Sequence = storeSeq
	if cfg.SequenceDriver == DriverRedis {
		redisSeq := sequence.NewRedis(c.Redis, sequence.OrdersCounter)
		floor, err := storeSeq.Peek(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("app: read stored order counter: %w", err)
		}
		if err := redisSeq.Seed(ctx, floor); err != nil {
			c.Close()
			return nil, err
		}
		c.Sequence = redisSeq
	}

	domain := opts.Domain
	c.Audit = shared.NewAuditLogger(c.Store)
	c.Idempotency = shared.NewIdempotencyStore(c.Store)
	c.Inventory = inventory.NewService(inventory.NewRepository(c.Store), c.Audit, domain, logger)
	c.Ledger = ledger.NewService(ledger.NewRepository(c.Store), c.Audit, domain, logger, ledger.Config{
		DefaultPaymentMethod: cfg.DefaultPaymentMethod,
	})
	c.Leads = leads.NewService(leads.NewRepository(c.Store), c.Audit, logger)
	c.Orders = orders.NewService(orders.NewRepository(c.Store), c.Sequence, c.Inventory, c.Ledger, c.Leads, orders.ServiceConfig{
		Locker:  locker,
		Audit:   c.Audit,
		Metrics: domain,
		Logger:  logger,
	})
	return c, nil
}

// Close releases backend connections owned by the container.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
