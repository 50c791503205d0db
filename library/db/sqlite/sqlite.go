// Package sqlite opens local SQLite databases.
package sqlite

import (
	"context"
	"database/sql"

	errors "github.com/Laisky/errors/v2"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens the SQLite database at path and verifies it responds.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}

	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)
	return db, nil
}
