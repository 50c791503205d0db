// Package redis wraps go-redis for the few key/value operations the service needs.
package redis

import (
	"context"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = errors.New("redis key not found")

// DB is a wrapper for go-redis
type DB struct {
	db *redis.Client
}

// NewDB creates a new DB instance
func NewDB(opt *redis.Options) *DB {
	return &DB{
		db: redis.NewClient(opt),
	}
}

// Ping checks the server is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.db.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "ping redis")
	}
	return nil
}

// Get returns the raw value stored at key
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := db.db.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(ErrNotFound, "key %s", key)
		}
		return nil, errors.Wrapf(err, "get key %s", key)
	}

	return val, nil
}

// Set stores value at key, ttl <= 0 means no expiration
func (db *DB) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := db.db.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "set key %s", key)
	}

	return nil
}

// Del removes key
func (db *DB) Del(ctx context.Context, key string) error {
	if err := db.db.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "del key %s", key)
	}

	return nil
}

// Close closes the underlying client
func (db *DB) Close() error {
	return db.db.Close()
}
