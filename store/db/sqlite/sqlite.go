// Package sqlite opens the sqlite backend for store/db.SQLDriver. Grounded
// on store/db/sqlite/sqlite.go's NewDB (DSN validation, WAL journal mode,
// foreign-key enforcement) in the teacher repo, adapted to the
// modernc.org/sqlite (pure-Go) driver already in go.mod rather than the
// teacher's CGO mattn/go-sqlite3, since Hermes has no vector-extension
// requirement that would justify the CGO dependency.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/hrygo/hermes/store"
	"github.com/hrygo/hermes/store/db"
)

// Dialect is the db.Dialect for sqlite.
var Dialect = db.SQLite

// Open opens (and migrates) a sqlite-backed store.Driver at dsn. Use
// ":memory:" for ephemeral/simulation use (e.g. in tests).
func Open(ctx context.Context, dsn string) (store.Driver, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	if dsn != ":memory:" && !strings.Contains(dsn, "_loc=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_loc=auto"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// modernc.org/sqlite serializes writers at the driver level; a single
	// connection avoids SQLITE_BUSY under Hermes's striped per-prompt locks.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, errors.Wrap(err, "set WAL journal mode")
	}
	if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	driver := db.New(sqlDB, Dialect)
	if err := driver.Migrate(ctx); err != nil {
		return nil, err
	}
	return driver, nil
}
