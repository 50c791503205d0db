package cmd

import (
	"strings"
	"time"

	gconfig "github.com/Laisky/go-config/v2"

	"github.com/Laisky/reel-places/internal/recommend"
	"github.com/Laisky/reel-places/library/db/postgres"
)

const (
	dbDriverPostgres = "postgres"
	dbDriverSQLite   = "sqlite"

	nearbyFinderWebhook = "webhook"
	nearbyFinderGoogle  = "google"

	nearbyCacheMemory = "memory"
	nearbyCacheRedis  = "redis"
	nearbyCacheSQLite = "sqlite"

	defaultSQLitePath    = "reel-places.db"
	defaultNearbyTTL     = 24 * time.Hour
	defaultCacheTable    = "search_results"
	defaultNearbyTable   = "nearby_sessions"
	defaultListenAddress = "localhost:8080"
)

// Settings is the sanitized runtime configuration.
type Settings struct {
	Listen string

	DBDriver   string
	Postgres   postgres.DialInfo
	SQLitePath string
	CacheTable string

	RedisAddr string
	RedisPwd  string
	RedisDB   int

	WebhookURL     string
	WebhookTimeout time.Duration
	Coalesce       bool

	NearbyFinder     string
	NearbyWebhookURL string
	GoogleAPIKey     string
	NearbyCache      string
	NearbyCacheTTL   time.Duration

	CORSOrigins []string
}

// NearbyEnabled reports whether the selected nearby finder has what it needs.
func (s Settings) NearbyEnabled() bool {
	switch s.NearbyFinder {
	case nearbyFinderGoogle:
		return s.GoogleAPIKey != ""
	default:
		return s.NearbyWebhookURL != ""
	}
}

// loadSettingsFromConfig reads the shared configuration.
func loadSettingsFromConfig() Settings {
	return loadSettings(func(key string) any {
		return gconfig.S.Get(key)
	})
}

func loadSettings(get configGetter) Settings {
	cfg := Settings{
		Listen:   stringFromConfig(get, "listen", defaultListenAddress),
		DBDriver: strings.ToLower(stringFromConfig(get, "settings.db.driver", dbDriverPostgres)),
		Postgres: postgres.DialInfo{
			Addr:   stringFromConfig(get, "settings.db.postgres.addr", ""),
			Port:   intFromConfig(get, "settings.db.postgres.port", 0),
			DBName: stringFromConfig(get, "settings.db.postgres.db", ""),
			User:   stringFromConfig(get, "settings.db.postgres.user", ""),
			Pwd:    stringFromConfig(get, "settings.db.postgres.pwd", ""),
		},
		SQLitePath: stringFromConfig(get, "settings.db.sqlite.path", defaultSQLitePath),
		CacheTable: stringFromConfig(get, "settings.db.table", defaultCacheTable),

		RedisAddr: stringFromConfig(get, "settings.db.redis.addr", ""),
		RedisPwd:  stringFromConfig(get, "settings.db.redis.pwd", ""),
		RedisDB:   intFromConfig(get, "settings.db.redis.db", 0),

		WebhookURL:     stringFromConfig(get, "settings.recommend.webhook.url", ""),
		WebhookTimeout: durationFromConfig(get, "settings.recommend.webhook.timeout", recommend.DefaultWebhookTimeout),
		Coalesce:       boolFromConfig(get, "settings.recommend.coalesce", false),

		NearbyFinder:     strings.ToLower(stringFromConfig(get, "settings.nearby.finder", nearbyFinderWebhook)),
		NearbyWebhookURL: stringFromConfig(get, "settings.nearby.webhook.url", ""),
		GoogleAPIKey:     stringFromConfig(get, "settings.nearby.google.api_key", ""),
		NearbyCache:      strings.ToLower(stringFromConfig(get, "settings.nearby.cache", nearbyCacheMemory)),
		NearbyCacheTTL:   durationFromConfig(get, "settings.nearby.cache_ttl", defaultNearbyTTL),

		CORSOrigins: stringSliceFromConfig(get, "settings.web.cors_origins"),
	}

	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = recommend.DefaultWebhookTimeout
	}
	if cfg.NearbyCacheTTL <= 0 {
		cfg.NearbyCacheTTL = defaultNearbyTTL
	}
	return cfg
}

func stringFromConfig(get configGetter, key, def string) string {
	v, err := parseStrictString(get(key))
	if err != nil {
		return def
	}
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func intFromConfig(get configGetter, key string, def int) int {
	raw := get(key)
	if raw == nil {
		return def
	}
	v, err := parseStrictInt(raw)
	if err != nil {
		return def
	}
	return v
}

func boolFromConfig(get configGetter, key string, def bool) bool {
	raw := get(key)
	if raw == nil {
		return def
	}
	v, ok := parseStrictBool(raw)
	if !ok {
		return def
	}
	return v
}

func durationFromConfig(get configGetter, key string, def time.Duration) time.Duration {
	raw := get(key)
	if raw == nil {
		return def
	}
	v, err := parseStrictDuration(raw)
	if err != nil {
		return def
	}
	return v
}

func stringSliceFromConfig(get configGetter, key string) []string {
	items, err := parseStrictStringSlice(get(key))
	if err != nil {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
