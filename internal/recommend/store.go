package recommend

import (
	"context"
	"regexp"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists encoded search results keyed by canonical term.
type Store interface {
	// FindLatest returns the most recently created record for term,
	// or ErrNotFound when there is none.
	FindLatest(ctx context.Context, term string) (*CacheRecord, error)
	// Insert appends a new record, existing rows are never updated.
	Insert(ctx context.Context, term, payload string) error
}

// Clock provides the current time in UTC.
type Clock func() time.Time

const defaultTableName = "search_results"

var regexpTableName = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)

type storeOption struct {
	tableName string
	clock     Clock
}

// StoreOption configures a store.
type StoreOption func(*storeOption) error

// WithTableName overrides the cache table name.
func WithTableName(name string) StoreOption {
	return func(o *storeOption) error {
		if !regexpTableName.MatchString(name) {
			return errors.Errorf("invalid table name: %s", name)
		}
		o.tableName = name
		return nil
	}
}

// WithClock overrides the timestamp source used for created_at.
func WithClock(clock Clock) StoreOption {
	return func(o *storeOption) error {
		if clock != nil {
			o.clock = clock
		}
		return nil
	}
}

func applyStoreOpts(opts ...StoreOption) (*storeOption, error) {
	o := &storeOption{
		tableName: defaultTableName,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	return o, nil
}

// DB defines the database capabilities PgStore needs, satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ DB    = (*pgxpool.Pool)(nil)
	_ Store = (*PgStore)(nil)
)

// PgStore is a Store backed by PostgreSQL through pgx.
type PgStore struct {
	db  DB
	opt *storeOption
}

// NewPgStore constructs a PgStore, call Migrate to create its table.
func NewPgStore(db DB, opts ...StoreOption) (*PgStore, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}

	opt, err := applyStoreOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "apply opts")
	}

	return &PgStore{db: db, opt: opt}, nil
}

// Migrate creates the cache table and its lookup index when absent.
func (s *PgStore) Migrate(ctx context.Context) error {
	table := s.opt.tableName
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id UUID PRIMARY KEY,
			term TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + table + `_term_created_at ON ` + table + ` (term, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "execute cache migration")
		}
	}

	return nil
}

// FindLatest returns the newest record for term.
func (s *PgStore) FindLatest(ctx context.Context, term string) (*CacheRecord, error) {
	var (
		record CacheRecord
		rawID  string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id::text, term, payload, created_at FROM `+s.opt.tableName+
			` WHERE term = $1 ORDER BY created_at DESC LIMIT 1`,
		term,
	).Scan(&rawID, &record.Term, &record.Payload, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "term %q", term)
		}
		return nil, storeError("query cache record", err)
	}

	if record.ID, err = uuid.Parse(rawID); err != nil {
		return nil, storeError("parse cache record id", err)
	}

	return &record, nil
}

// Insert appends a record for term.
func (s *PgStore) Insert(ctx context.Context, term, payload string) error {
	// the write must finish even when the caller gave up waiting
	ctx = context.WithoutCancel(ctx)
	_, err := s.db.Exec(ctx,
		`INSERT INTO `+s.opt.tableName+` (id, term, payload, created_at) VALUES ($1, $2, $3, $4)`,
		gutils.UUID7Bytes().String(),
		term,
		payload,
		s.opt.clock(),
	)
	if err != nil {
		return storeError("insert cache record", err)
	}

	return nil
}
