package recommend

import (
	"context"
	"database/sql"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/google/uuid"
)

var _ Store = (*SQLStore)(nil)

// SQLStore is a Store over database/sql, used with SQLite for local runs.
type SQLStore struct {
	db  *sql.DB
	opt *storeOption
}

// NewSQLStore constructs a SQLStore, call Migrate to create its table.
func NewSQLStore(db *sql.DB, opts ...StoreOption) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}

	opt, err := applyStoreOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "apply opts")
	}

	return &SQLStore{db: db, opt: opt}, nil
}

// Migrate creates the cache table and its lookup index when absent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	table := s.opt.tableName
	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
  id TEXT PRIMARY KEY,
  term TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_` + table + `_term_created_at ON ` + table + ` (term, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "execute cache migration")
		}
	}

	return nil
}

// FindLatest returns the newest record for term.
func (s *SQLStore) FindLatest(ctx context.Context, term string) (*CacheRecord, error) {
	var (
		record CacheRecord
		rawID  string
	)
	stmt := `SELECT id, term, payload, created_at FROM ` + s.opt.tableName +
		` WHERE term = $1 ORDER BY created_at DESC LIMIT 1`
	err := s.db.QueryRowContext(ctx, stmt, term).
		Scan(&rawID, &record.Term, &record.Payload, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLStore) Insert(ctx context.Context, term, payload string) error {
	ctx = context.WithoutCancel(ctx)
	stmt := `INSERT INTO ` + s.opt.tableName + ` (id, term, payload, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, stmt,
		gutils.UUID7Bytes().String(),
		term,
		payload,
		s.opt.clock(),
	); err != nil {
		return storeError("insert cache record", err)
	}

	return nil
}
