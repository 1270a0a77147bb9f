package main

import (
	"context"
	"fmt"
	"log/slog"

	cfnats "github.com/Strob0t/SiteForge/internal/adapter/nats"
	"github.com/Strob0t/SiteForge/internal/adapter/natskv"
	sfotel "github.com/Strob0t/SiteForge/internal/adapter/otel"
	"github.com/Strob0t/SiteForge/internal/adapter/postgres"
	"github.com/Strob0t/SiteForge/internal/adapter/ristretto"
	"github.com/Strob0t/SiteForge/internal/adapter/sqlite"
	"github.com/Strob0t/SiteForge/internal/adapter/staticdir"
	"github.com/Strob0t/SiteForge/internal/adapter/tiered"
	"github.com/Strob0t/SiteForge/internal/config"
	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/port/cache"
	"github.com/Strob0t/SiteForge/internal/port/database"
	"github.com/Strob0t/SiteForge/internal/port/messagequeue"
	"github.com/Strob0t/SiteForge/internal/resilience"
	"github.com/Strob0t/SiteForge/internal/service"
)

// infra is the wired storage, cache and messaging stack.
type infra struct {
	store     database.Store
	guarded   *service.GuardedStore
	cached    *service.CachedStore
	directory *service.DirectoryService
	queue     messagequeue.Queue
	closers   []func()
}

// Close releases resources in reverse order of acquisition.
func (i *infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func visibility(cfg *config.Config) tenant.Visibility {
	return tenant.Visibility{DraftVisible: cfg.Directory.DraftVisible}
}

// openStore connects the configured storage driver and applies migrations.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		applied, err := postgres.RunMigrations(ctx, cfg.Postgres.DSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected", "migrations_applied", applied)
		return postgres.NewStore(pool, visibility(cfg)), pool.Close, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path, visibility(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		slog.Info("sqlite opened", "path", cfg.SQLite.Path)
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// openQueue connects NATS when enabled. A nil queue means single-instance
// mode: invalidation stays local and diagnostics are only logged.
func openQueue(ctx context.Context, cfg *config.Config) (*cfnats.Queue, error) {
	if !cfg.NATS.Enabled {
		return nil, nil
	}
	q, err := cfnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}
	return q, nil
}

func openInfra(ctx context.Context, cfg *config.Config, metrics *sfotel.Metrics) (*infra, error) {
	in := &infra{}
	ok := false
	defer func() {
		if !ok {
			in.Close()
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	in.store = store
	in.closers = append(in.closers, closeStore)

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout,
		resilience.WithFailurePredicate(service.StorageFailure),
		resilience.WithIgnore(service.Abandoned),
		resilience.WithStateChange(func(from, to resilience.State) {
			level := slog.LevelInfo
			if to == resilience.StateOpen {
				level = slog.LevelWarn
			}
			slog.Log(context.Background(), level, "storage breaker state changed", "from", from.String(), "to", to.String())
			metrics.RecordBreaker(context.Background(), to.String())
		}))
	in.guarded = service.NewGuardedStore(store, breaker, resilience.NewBulkhead(cfg.Storage.MaxConcurrent))

	var l2 cache.Cache
	q, err := openQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if q != nil {
		in.queue = q
		in.closers = append(in.closers, func() {
			if err := q.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		})
		kv, err := q.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			return nil, fmt.Errorf("nats kv: %w", err)
		}
		l2 = natskv.New(kv)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return nil, err
	}
	in.closers = append(in.closers, func() {
		slog.Info("l1 cache closed", "hit_ratio", l1.HitRatio())
		l1.Close()
	})
	in.cached = service.NewCachedStore(in.guarded, tiered.New(l1, l2, cfg.Cache.TTL), cfg.Cache.L2TTL, metrics)

	var source database.DirectorySource = in.guarded
	if cfg.Directory.StaticFile != "" {
		static, err := staticdir.New(cfg.Directory.StaticFile)
		if err != nil {
			return nil, fmt.Errorf("static directory: %w", err)
		}
		source = static
	}
	in.directory = service.NewDirectoryService(source, visibility(cfg), cfg.Directory.LocalDevDomain, cfg.Directory.RefreshInterval)
	if err := in.directory.Refresh(ctx); err != nil {
		// Not fatal: the next request retries the load.
		slog.Warn("initial tenant directory load failed", "error", err)
	} else {
		slog.Info("tenant directory loaded", "tenants", in.directory.Size())
	}

	ok = true
	return in, nil
}
