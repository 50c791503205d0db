package nearby

import (
	"context"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/goccy/go-json"

	rdb "github.com/Laisky/reel-places/library/db/redis"
	"github.com/Laisky/reel-places/library/db/sqlite"
)

// ErrSessionNotFound is returned when a session has no cached entry.
var ErrSessionNotFound = errors.New("nearby session not found")

// Entry is what a session remembers between requests.
type Entry struct {
	Last   Coordinate `json:"last"`
	Places []Place    `json:"places"`
}

// SessionCache stores one Entry per session.
type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*Entry, error)
	Set(ctx context.Context, sessionID string, entry Entry) error
	Clear(ctx context.Context, sessionID string) error
}

// MemoryCache keeps entries in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ SessionCache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]Entry{}}
}

// Get returns a copy of the session entry.
func (c *MemoryCache) Get(_ context.Context, sessionID string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[sessionID]
	if !ok {
		return nil, errors.Wrapf(ErrSessionNotFound, "session %q", sessionID)
	}
	entry.Places = append([]Place(nil), entry.Places...)
	return &entry, nil
}

// Set replaces the session entry.
func (c *MemoryCache) Set(_ context.Context, sessionID string, entry Entry) error {
	entry.Places = append([]Place(nil), entry.Places...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = entry
	return nil
}

// Clear drops the session entry.
func (c *MemoryCache) Clear(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

// KV is the key-value surface the persistent caches need.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

var (
	_ KV = (*rdb.DB)(nil)
	_ KV = (*sqlite.KV)(nil)
)

// kvCache stores entries as JSON values under rdb.KeyPrefixNearby.
type kvCache struct {
	kv       KV
	ttl      time.Duration
	notFound error
}

func sessionKey(sessionID string) string {
	return rdb.KeyPrefixNearby + sessionID
}

// Get loads the session entry.
func (c *kvCache) Get(ctx context.Context, sessionID string) (*Entry, error) {
	raw, err := c.kv.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, c.notFound) {
			return nil, errors.Wrapf(ErrSessionNotFound, "session %q", sessionID)
		}
		return nil, errors.Wrap(err, "load nearby session")
	}

	entry := new(Entry)
	if err = json.Unmarshal(raw, entry); err != nil {
		return nil, errors.Wrap(err, "decode nearby session")
	}
	return entry, nil
}

// Set stores the session entry with the configured ttl.
func (c *kvCache) Set(ctx context.Context, sessionID string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encode nearby session")
	}
	if err = c.kv.Set(ctx, sessionKey(sessionID), raw, c.ttl); err != nil {
		return errors.Wrap(err, "save nearby session")
	}
	return nil
}

// Clear removes the session entry.
func (c *kvCache) Clear(ctx context.Context, sessionID string) error {
	if err := c.kv.Del(ctx, sessionKey(sessionID)); err != nil {
		return errors.Wrap(err, "clear nearby session")
	}
	return nil
}

// RedisCache keeps entries in redis so they survive restarts and are
// shared between api replicas.
type RedisCache struct {
	kvCache
}

var _ SessionCache = (*RedisCache)(nil)

// NewRedisCache builds a RedisCache, ttl <= 0 keeps entries forever.
func NewRedisCache(kv KV, ttl time.Duration) (*RedisCache, error) {
	if kv == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisCache{kvCache{kv: kv, ttl: ttl, notFound: rdb.ErrNotFound}}, nil
}

// SQLCache keeps entries in the local sqlite kv table.
type SQLCache struct {
	kvCache
}

var _ SessionCache = (*SQLCache)(nil)

// NewSQLCache builds a SQLCache, ttl <= 0 keeps entries forever.
func NewSQLCache(kv KV, ttl time.Duration) (*SQLCache, error) {
	if kv == nil {
		return nil, errors.New("sqlite kv is required")
	}
	return &SQLCache{kvCache{kv: kv, ttl: ttl, notFound: sqlite.ErrNotFound}}, nil
}
