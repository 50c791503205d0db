package nearby

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	rdb "github.com/Laisky/reel-places/library/db/redis"
	"github.com/Laisky/reel-places/library/db/sqlite"
)

type fakeKV struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (kv *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.err != nil {
		return nil, kv.err
	}
	v, ok := kv.values[key]
	if !ok {
		return nil, errors.Wrapf(rdb.ErrNotFound, "key %s", key)
	}
	return v, nil
}

func (kv *fakeKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.err != nil {
		return kv.err
	}
	kv.values[key] = value
	kv.ttls[key] = ttl
	return nil
}

func (kv *fakeKV) Del(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.err != nil {
		return kv.err
	}
	delete(kv.values, key)
	return nil
}

func exerciseSessionCache(t *testing.T, cache SessionCache) {
	t.Helper()
	ctx := context.Background()

	_, err := cache.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	entry := Entry{
		Last:   Coordinate{Latitude: 1, Longitude: 2},
		Places: []Place{{LocationName: "Louvre"}},
	}
	require.NoError(t, cache.Set(ctx, "s1", entry))

	got, err := cache.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, entry, *got)

	_, err = cache.Get(ctx, "s2")
	require.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, cache.Clear(ctx, "s1"))
	_, err = cache.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrSessionNotFound)

	// clearing an unknown session is not an error
	require.NoError(t, cache.Clear(ctx, "unknown"))
}

func TestMemoryCache(t *testing.T) {
	exerciseSessionCache(t, NewMemoryCache())
}

func TestMemoryCacheCopiesPlaces(t *testing.T) {
	cache := NewMemoryCache()
	places := []Place{{LocationName: "Louvre"}}
	require.NoError(t, cache.Set(context.Background(), "s", Entry{Places: places}))

	places[0].LocationName = "mutated"
	got, err := cache.Get(context.Background(), "s")
	require.NoError(t, err)
	require.Equal(t, "Louvre", got.Places[0].LocationName)
}

func TestRedisCache(t *testing.T) {
	kv := newFakeKV()
	cache, err := NewRedisCache(kv, time.Hour)
	require.NoError(t, err)
	exerciseSessionCache(t, cache)

	require.NoError(t, cache.Set(context.Background(), "abc", Entry{}))
	require.Contains(t, kv.values, "reel-places/nearby/abc")
	require.Equal(t, time.Hour, kv.ttls["reel-places/nearby/abc"])
}

func TestRedisCacheErrors(t *testing.T) {
	_, err := NewRedisCache(nil, 0)
	require.Error(t, err)

	kv := newFakeKV()
	cache, err := NewRedisCache(kv, 0)
	require.NoError(t, err)

	kv.values[sessionKey("bad")] = []byte("{not json")
	_, err = cache.Get(context.Background(), "bad")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrSessionNotFound)

	kv.err = errors.New("connection refused")
	_, err = cache.Get(context.Background(), "s")
	require.ErrorContains(t, err, "connection refused")
	require.ErrorContains(t, cache.Set(context.Background(), "s", Entry{}), "connection refused")
	require.ErrorContains(t, cache.Clear(context.Background(), "s"), "connection refused")
}

func TestSQLCache(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "nearby.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	kv, err := sqlite.NewKV(ctx, db, sqlite.WithKVTable("nearby_sessions"))
	require.NoError(t, err)

	cache, err := NewSQLCache(kv, time.Hour)
	require.NoError(t, err)
	exerciseSessionCache(t, cache)

	_, err = NewSQLCache(nil, 0)
	require.Error(t, err)
}
