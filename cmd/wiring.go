package cmd

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/redis/go-redis/v9"

	"github.com/Laisky/reel-places/internal/nearby"
	"github.com/Laisky/reel-places/internal/recommend"
	rdb "github.com/Laisky/reel-places/library/db/redis"
	"github.com/Laisky/reel-places/library/db/postgres"
	"github.com/Laisky/reel-places/library/db/sqlite"
	"github.com/Laisky/reel-places/library/log"
)

// cacheStore is a recommendation store that can create its own table.
type cacheStore interface {
	recommend.Store
	Migrate(ctx context.Context) error
}

// openStore connects to the configured cache database.
// The returned func releases the connection.
func openStore(ctx context.Context, cfg Settings) (cacheStore, func(), error) {
	opts := []recommend.StoreOption{recommend.WithTableName(cfg.CacheTable)}

	switch cfg.DBDriver {
	case dbDriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open sqlite")
		}
		store, err := recommend.NewSQLStore(db, opts...)
		if err != nil {
			_ = db.Close()
			return nil, nil, errors.Wrap(err, "new sqlite store")
		}

		log.Logger.Info("use sqlite cache store", zap.String("path", cfg.SQLitePath))
		return store, func() { _ = db.Close() }, nil

	case dbDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect postgres")
		}
		store, err := recommend.NewPgStore(pool, opts...)
		if err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "new postgres store")
		}

		log.Logger.Info("use postgres cache store",
			zap.String("addr", cfg.Postgres.Addr),
			zap.String("db", cfg.Postgres.DBName))
		return store, pool.Close, nil

	default:
		return nil, nil, errors.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

func newRecommendService(cfg Settings, store recommend.Store) (*recommend.Service, error) {
	fetcher, err := recommend.NewWebhookFetcher(cfg.WebhookURL, cfg.WebhookTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "new webhook fetcher")
	}

	svc, err := recommend.NewService(store, fetcher,
		recommend.WithCoalescing(cfg.Coalesce),
		recommend.WithStateObserver(func(term string, state recommend.State) {
			log.Logger.Debug("lookup state",
				zap.String("term", term),
				zap.String("state", state.String()))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "new recommend service")
	}

	return svc, nil
}

func newNearbyFinder(cfg Settings) (nearby.Finder, error) {
	switch cfg.NearbyFinder {
	case nearbyFinderGoogle:
		return nearby.NewPlacesFinder(cfg.GoogleAPIKey, "")
	case nearbyFinderWebhook:
		return nearby.NewWebhookFinder(cfg.NearbyWebhookURL)
	default:
		return nil, errors.Errorf("unknown nearby finder %q", cfg.NearbyFinder)
	}
}

// newNearbyService returns nil when no nearby finder is configured.
func newNearbyService(ctx context.Context, cfg Settings) (*nearby.Service, func(), error) {
	noop := func() {}
	if !cfg.NearbyEnabled() {
		log.Logger.Info("nearby finder not configured, nearby routes disabled",
			zap.String("finder", cfg.NearbyFinder))
		return nil, noop, nil
	}

	finder, err := newNearbyFinder(cfg)
	if err != nil {
		return nil, noop, errors.Wrap(err, "new nearby finder")
	}

	var (
		cache   nearby.SessionCache
		release = noop
	)
	switch cfg.NearbyCache {
	case nearbyCacheRedis:
		client := rdb.NewDB(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPwd,
			DB:       cfg.RedisDB,
		})
		if err = client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, noop, errors.Wrap(err, "connect redis")
		}
		if cache, err = nearby.NewRedisCache(client, cfg.NearbyCacheTTL); err != nil {
			_ = client.Close()
			return nil, noop, errors.Wrap(err, "new redis session cache")
		}
		release = func() { _ = client.Close() }
	case nearbyCacheSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, errors.Wrap(err, "open sqlite")
		}
		kv, err := sqlite.NewKV(ctx, db, sqlite.WithKVTable(defaultNearbyTable))
		if err != nil {
			_ = db.Close()
			return nil, noop, errors.Wrap(err, "new sqlite kv")
		}
		if cache, err = nearby.NewSQLCache(kv, cfg.NearbyCacheTTL); err != nil {
			_ = db.Close()
			return nil, noop, errors.Wrap(err, "new sqlite session cache")
		}
		release = func() { _ = db.Close() }
	default:
		cache = nearby.NewMemoryCache()
	}

	svc, err := nearby.NewService(finder, cache)
	if err != nil {
		release()
		return nil, noop, errors.Wrap(err, "new nearby service")
	}

	log.Logger.Info("nearby places enabled",
		zap.String("finder", cfg.NearbyFinder),
		zap.String("cache", cfg.NearbyCache))
	return svc, release, nil
}
