// Package postgres builds PostgreSQL connection pools.
package postgres

import (
	"context"
	"fmt"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DialInfo postgres dial info
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd string
	Port int
}

const defaultPort = 5432

// BuildDSN builds a PostgreSQL DSN from dialInfo.
func BuildDSN(dialInfo DialInfo) string {
	port := dialInfo.Port
	if port <= 0 {
		port = defaultPort
	}

	return "host=" + dialInfo.Addr +
		" user=" + dialInfo.User +
		" password=" + dialInfo.Pwd +
		" dbname=" + dialInfo.DBName +
		fmt.Sprintf(" port=%d", port) +
		" sslmode=disable TimeZone=UTC"
}

// NewPool creates a pgx pool and verifies the connection.
func NewPool(ctx context.Context, dialInfo DialInfo) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(BuildDSN(dialInfo))
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres dsn")
	}

	cfg.MaxConns = 50
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "new postgres pool")
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return pool, nil
}
