package sqlite

import (
	"context"
	"database/sql"
	"regexp"
	"time"

	errors "github.com/Laisky/errors/v2"
)

var (
	regexpTableName = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)

	// ErrNotFound is returned when a key does not exist or has expired
	ErrNotFound = errors.New("sqlite key not found")
)

const maxKeyLen = 512

// KV is a key-value table with per-key expiration
type KV struct {
	opt *kvOption
	db  *sql.DB
}

type kvOption struct {
	tableName string
	now       func() time.Time
}

// KVOption is a function that configures the kv
type KVOption func(*kvOption) error

func applyKVOpts(opts ...KVOption) (*kvOption, error) {
	// fill default
	o := &kvOption{
		tableName: "kv",
		now:       time.Now,
	}

	// apply opts
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return o, nil
}

// WithKVTable sets the table name
func WithKVTable(tableName string) KVOption {
	return func(o *kvOption) error {
		if !regexpTableName.MatchString(tableName) {
			return errors.Errorf("invalid table name: %s", tableName)
		}
		o.tableName = tableName
		return nil
	}
}

// WithKVClock overrides the clock used for expiration
func WithKVClock(now func() time.Time) KVOption {
	return func(o *kvOption) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

// NewKV creates the kv table if needed and returns a KV bound to it
func NewKV(ctx context.Context, db *sql.DB, opts ...KVOption) (*KV, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}

	opt, err := applyKVOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "apply opts")
	}

	kv := &KV{
		opt: opt,
		db:  db,
	}
	if err := kv.setup(ctx); err != nil {
		return nil, errors.Wrap(err, "setup kv")
	}

	return kv, nil
}

func (kv *KV) setup(ctx context.Context) error {
	stmt := `
CREATE TABLE IF NOT EXISTS ` + kv.opt.tableName + ` (
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL,
  created_at TIMESTAMP NOT NULL,
  expire_at TIMESTAMP
)`

	if _, err := kv.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, "create kv table")
	}

	return nil
}

func validKey(key string) error {
	if key == "" || len(key) > maxKeyLen {
		return errors.Errorf("invalid key length %d", len(key))
	}

	return nil
}

// Set stores value at key, ttl <= 0 means no expiration
func (kv *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validKey(key); err != nil {
		return errors.WithStack(err)
	}

	now := kv.opt.now().UTC()
	var expireAt sql.NullTime
	if ttl > 0 {
		expireAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}

	stmt := `
INSERT INTO ` + kv.opt.tableName + ` (key, value, created_at, expire_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT(key)
DO UPDATE SET value = EXCLUDED.value, expire_at = EXCLUDED.expire_at`

	if _, err := kv.db.ExecContext(ctx, stmt, key, value, now, expireAt); err != nil {
		return errors.Wrapf(err, "set key %s", key)
	}

	return nil
}

// Get returns the value stored at key. An expired key is deleted
// and reported as ErrNotFound.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value    []byte
		expireAt sql.NullTime
	)
	stmt := `SELECT value, expire_at FROM ` + kv.opt.tableName + ` WHERE key = $1 LIMIT 1`
	err := kv.db.QueryRowContext(ctx, stmt, key).Scan(&value, &expireAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "key %s", key)
		}
		return nil, errors.Wrapf(err, "get key %s", key)
	}

	if expireAt.Valid && !kv.opt.now().Before(expireAt.Time) {
		_ = kv.Del(ctx, key)
		return nil, errors.Wrapf(ErrNotFound, "key %s expired", key)
	}
	return value, nil
}

// Del removes key
func (kv *KV) Del(ctx context.Context, key string) error {
	stmt := `DELETE FROM ` + kv.opt.tableName + ` WHERE key = $1`
	if _, err := kv.db.ExecContext(ctx, stmt, key); err != nil {
		return errors.Wrapf(err, "del key %s", key)
	}
	return nil
}
