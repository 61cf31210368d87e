// Package store implements the Persistence Layer (spec C2): transactional
// CRUD over Agents, Conversations and Messages via database/sql, with
// dialect selection from the DSN scheme and graceful degraded-mode
// fallback when construction fails. Grounded on the teacher's
// pkg/config/dbpool.go (pool-by-DSN, SQLite forced to a single
// connection) and pkg/agent/task_service_sql.go (schema bootstrap via
// CREATE TABLE IF NOT EXISTS, one dialect-portable schema string).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the spec C2 Persistence Layer. A nil/unreachable database
// flips it into degraded mode: every CRUD method becomes a documented
// no-op returning a zero value and nil error, and a single warning is
// logged once at construction (spec §4.2) -- never mid-request.
type Store struct {
	db       *sql.DB
	dialect  string
	degraded bool
}

// Degraded reports whether the store is operating without a live
// database connection.
func (s *Store) Degraded() bool { return s.degraded }

// NewDegraded returns a Store that is always in degraded mode -- used
// when no DATABASE_URL is configured at all (spec §6 "absent ... ⇒
// degraded mode").
func NewDegraded() *Store {
	slog.Warn("store: no database configured, running in degraded (in-memory only) mode")
	return &Store{degraded: true}
}

// NewFromDSN opens a database connection for dsn and bootstraps the
// schema. Construction never returns an error to the caller: a bad DSN
// or failed ping degrades the store instead of aborting startup (spec
// §4.2, §6 "Exit codes ... otherwise the process stays up and
// degrades").
func NewFromDSN(dsn string) *Store {
	if strings.TrimSpace(dsn) == "" {
		return NewDegraded()
	}

	dialect, driver, connStr := parseDSN(dsn)

	db, err := sql.Open(driver, connStr)
	if err != nil {
		slog.Warn("store: failed to open database, running in degraded mode", "error", err)
		return &Store{degraded: true}
	}

	if driver == "sqlite3" {
		// SQLite only supports one writer at a time; a single connection
		// serializes access and avoids "database is locked" errors.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		slog.Warn("store: failed to connect to database, running in degraded mode", "error", err)
		return &Store{degraded: true}
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.bootstrapSchema(ctx); err != nil {
		_ = db.Close()
		slog.Warn("store: failed to bootstrap schema, running in degraded mode", "error", err)
		return &Store{degraded: true}
	}
	return s
}

// Close releases the underlying connection pool, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// parseDSN picks a dialect + database/sql driver name + driver-native
// connection string from a URL-shaped or bare DSN. Recognized schemes:
// postgres(ql)://, mysql://, sqlite(3)://, or a bare path/":memory:"
// treated as sqlite for zero-config local runs.
func parseDSN(dsn string) (dialect, driver, connStr string) {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "sqlite", "sqlite3", dsn
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return "postgres", "postgres", dsn
	case "mysql":
		return "mysql", "mysql", strings.TrimPrefix(dsn, "mysql://")
	case "sqlite", "sqlite3":
		return "sqlite", "sqlite3", strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite3://"), "sqlite://")
	default:
		return "sqlite", "sqlite3", dsn
	}
}

// rebind rewrites a query written with "?" placeholders into the
// store's dialect, substituting "$1", "$2", ... for postgres. Grounded
// on the same positional-rebind idiom sqlx.Rebind uses, kept local here
// since this package has no sqlx dependency.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
