// Package app builds a ready ledger from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/casinoledger/internal/balancecache"
	"github.com/fastprodman/casinoledger/internal/bus"
	"github.com/fastprodman/casinoledger/internal/bus/pgnotify"
	"github.com/fastprodman/casinoledger/internal/bus/redisbus"
	"github.com/fastprodman/casinoledger/internal/config"
	"github.com/fastprodman/casinoledger/internal/infra/logging"
	"github.com/fastprodman/casinoledger/internal/infra/metrics"
	"github.com/fastprodman/casinoledger/internal/infra/pgutils"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/repos/accounts/postgres"
	"github.com/fastprodman/casinoledger/internal/repos/accounts/sqlite"
	"github.com/fastprodman/casinoledger/internal/services/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Store   accounts.Store
	Bus     bus.Bus
	Ledger  *ledger.Service
	Metrics *metrics.Ledger
}

// New opens the configured store and bus and wires the engine. reg may be
// nil to skip metrics.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	b, err := OpenBus(ctx, cfg, logging.Component(logger, "bus"))
	if err != nil {
		store.Close()
		return nil, err
	}
	if cfg.Store.Backend == config.StoreSQLite && cfg.Bus.Driver != config.BusNone {
		logger.Warn("bus configured with the embedded sqlite store; peers cannot share this file",
			"bus", cfg.Bus.Driver)
	}

	var m *metrics.Ledger
	if reg != nil {
		m = metrics.New(reg)
	}

	cache := balancecache.New(balancecache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.Cache.TTL,
	})

	svc := ledger.New(store, cache, ledger.ConfigFrom(cfg),
		ledger.WithBus(b),
		ledger.WithLogger(logging.Component(logger, "ledger")),
		ledger.WithMetrics(m),
	)

	logger.Info("ledger ready",
		"store", cfg.Store.Backend,
		"bus", cfg.Bus.Driver,
		"instance_id", svc.InstanceID(),
	)

	return &App{Store: store, Bus: b, Ledger: svc, Metrics: m}, nil
}

func (a *App) Close() error {
	return errors.Join(a.Bus.Close(), a.Store.Close())
}

func OpenStore(ctx context.Context, cfg config.Config) (accounts.Store, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

const redisPingTimeout = 2 * time.Second

func OpenBus(ctx context.Context, cfg config.Config, logger *slog.Logger) (bus.Bus, error) {
	switch cfg.Bus.Driver {
	case config.BusNone, "":
		return bus.Nop{}, nil
	case config.BusPostgres:
		pool, err := pgutils.OpenPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open pgnotify bus: %w", err)
		}
		return pgnotify.NewOwned(pool, cfg.Bus.Channel, logger), nil
	case config.BusRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		// The subscriber reconnects with backoff, so an unreachable server
		// only delays coherence hints.
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("redis bus unreachable at startup, continuing",
				"addr", cfg.Redis.Addr,
				"error", err,
			)
		}
		return redisbus.New(client, cfg.Bus.Channel, logger), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
	}
}
