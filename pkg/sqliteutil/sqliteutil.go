// Package sqliteutil centralizes the sqlite connection conventions shared by
// pkg/catalog and pkg/conversation: a single pure-Go driver, WAL journaling,
// and a serialized-write connection pool (sqlite only supports one writer at
// a time regardless of how many goroutines hold *sql.DB).
package sqliteutil

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/edombelayneh/Qlippy/pkg/qerrors"
)

// OpenDB opens (creating if necessary) a sqlite database at path with the
// pragmas the catalog and conversation store both require: busy_timeout so
// concurrent readers don't trip over a writer transaction, WAL so readers
// never block the writer, and foreign_keys so cascade deletes (spec.md
// "deleting V cascades to all its G") are enforced by the engine instead of
// application code.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, qerrors.Wrap(qerrors.IOFailure, fmt.Sprintf("cannot create database directory %q", dir), err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, translateOpenErr(path, err)
	}

	// SQLite allows only one writer; serialize at the pool level so we never
	// see "database is locked" errors bubble out of otherwise-valid writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, translateOpenErr(path, err)
	}

	return db, nil
}

func translateOpenErr(path string, err error) error {
	if isCantOpenError(err) {
		return qerrors.Wrap(qerrors.IOFailure, diagnoseOpenError(path), err)
	}
	return qerrors.Wrap(qerrors.IOFailure, fmt.Sprintf("failed to open database %q", path), err)
}

func isCantOpenError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CANTOPEN
	}
	return false
}

func diagnoseOpenError(path string) string {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("cannot create database at %q: directory %q does not exist", path, dir)
		}
		return fmt.Sprintf("cannot create database at %q: %v", path, err)
	}
	if !info.IsDir() {
		return fmt.Sprintf("cannot create database at %q: %q is not a directory", path, dir)
	}
	return fmt.Sprintf("cannot create database at %q: permission denied in %q", path, dir)
}

// RunMigrations executes each statement in order with a plain Exec (no
// transaction) and stops at the first failure, returning it. Rerunning is
// harmless only because the schemas use CREATE ... IF NOT EXISTS.
func RunMigrations(db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return qerrors.Wrap(qerrors.IOFailure, "failed to run migration", err)
		}
	}
	return nil
}
