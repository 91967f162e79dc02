// Package app assembles the storefront components from a Config. The API
// server and the shopctl tool share it so both see the same collections.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/events"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/reviews"
	"github.com/ariefcatur/go-storefront/internal/session"
	"github.com/ariefcatur/go-storefront/internal/storage"
	"github.com/ariefcatur/go-storefront/internal/support"
	"github.com/ariefcatur/go-storefront/internal/wishlist"
)

type App struct {
	Blobs     storage.Blobs
	Catalog   *catalog.Store
	Carts     *cart.Carts
	Wishlists *wishlist.Wishlists
	Orders    *orders.Service
	Tickets   *support.Tracker
	Reviews   *reviews.Reviews
	Directory *session.Directory
	Sessions  *session.Sessions
	Status    *redisx.StatusCache // nil without redis

	closers []func()
}

// Options carries what the caller owns: the event sink and whether a Redis
// status cache should be attached.
type Options struct {
	Publisher events.Publisher
	Cache     bool
}

// Open connects the configured storage backend and loads every collection.
func Open(ctx context.Context, cfg config.Config, opt Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{}
	blobs, rdb, err := a.openStorage(ctx, cfg, opt.Cache, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Blobs = storage.WithLatency(blobs, cfg.SimulatedLatency)
	if rdb != nil {
		a.Status = &redisx.StatusCache{Redis: rdb}
	}

	pub := opt.Publisher
	if pub == nil {
		pub = events.Discard{}
	}

	a.Catalog = catalog.NewStore(a.Blobs, logger)
	a.Carts = cart.NewCarts(a.Catalog, cfg.TaxRate, a.Blobs, logger)
	a.Wishlists = wishlist.New(a.Catalog, nil, a.Blobs, logger)
	a.Reviews = reviews.New(a.Catalog, nil, a.Blobs, logger)
	a.Directory = session.NewDirectory(a.Blobs, logger)
	a.Sessions = session.NewSessions(a.Directory, session.NewTokens(cfg.SessionSecret, cfg.SessionTTL, nil), a.Blobs, cfg.SessionResolveTimeout, logger)

	orderOpts := []orders.Option{orders.WithPublisher(pub, cfg.ServiceName)}
	ticketOpts := []support.Option{support.WithPublisher(pub, cfg.ServiceName)}
	if a.Status != nil {
		orderOpts = append(orderOpts, orders.WithStatusCache(a.Status))
		ticketOpts = append(ticketOpts, support.WithStatusCache(a.Status))
	}
	a.Orders = orders.NewService(a.Carts, a.Catalog, a.Blobs, logger, orderOpts...)
	a.Tickets = support.NewTracker(nil, a.Blobs, logger, ticketOpts...)

	if err := a.load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// load reads every collection. The catalog goes first because it seeds on
// first run; the rest are independent of each other.
func (a *App) load(ctx context.Context) error {
	if err := a.Catalog.Load(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	for name, load := range map[string]func(context.Context) error{
		"carts":    a.Carts.Load,
		"wishlist": a.Wishlists.Load,
		"orders":   a.Orders.Load,
		"tickets":  a.Tickets.Load,
		"reviews":  a.Reviews.Load,
		"users":    a.Directory.Load,
	} {
		g.Go(func() error {
			if err := load(ctx); err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *App) openStorage(ctx context.Context, cfg config.Config, cache bool, logger *slog.Logger) (storage.Blobs, *redis.Client, error) {
	var rdb *redis.Client
	if cfg.StorageDriver == config.DriverRedis || cache {
		rdb = redisx.New(cfg.RedisAddr)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			if cfg.StorageDriver == config.DriverRedis {
				return nil, nil, fmt.Errorf("redis: %w", err)
			}
			logger.Warn("redis unavailable, status cache disabled", "addr", cfg.RedisAddr, "err", err)
			rdb = nil
		}
	}

	switch cfg.StorageDriver {
	case config.DriverRedis:
		return &redisx.Blobs{Redis: rdb}, rdb, nil
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.ServiceName)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		b := &postgres.Blobs{DB: pool}
		if err := b.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return b, rdb, nil
	}
	return storage.NewMemory(), rdb, nil
}

// Close releases the storage connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
