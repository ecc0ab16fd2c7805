// Package postgres opens the postgres backend for store/db.SQLDriver,
// grounded on store/db/postgres's connection-setup conventions in the
// teacher repo (lib/pq driver, DSN passthrough, fail-fast on empty DSN).
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/hermes/store"
	"github.com/hrygo/hermes/store/db"
)

// Dialect is the db.Dialect for postgres.
var Dialect = db.Postgres

// Open opens (and migrates) a postgres-backed store.Driver at dsn.
func Open(ctx context.Context, dsn string) (store.Driver, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "ping postgres")
	}

	driver := db.New(sqlDB, Dialect)
	if err := driver.Migrate(ctx); err != nil {
		return nil, err
	}
	return driver, nil
}
