// Package store opens the backing database and applies the document schema.
//
// Two backends are supported:
//   - SQLite (embedded, also the test backend), configured with WAL mode,
//     foreign-key enforcement, and a busy timeout
//   - Postgres via the pgx stdlib driver, the production backend
//
// The store owns only connection setup and schema application. All reads and
// writes against the schema go through the sqlaction facade, inside
// transactions owned by the caller.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/docstore/internal/dialect"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Store wraps the database handle together with its dialect.
type Store struct {
	db      *sql.DB
	dialect dialect.Dialect
}

// OpenSQLite creates or opens a SQLite database at the given path
// (":memory:" for an in-memory database). Applies required pragmas and the
// schema; idempotent.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	// Foreign keys default to off in SQLite; busy_timeout makes lock
	// contention surface as SQLITE_BUSY after a bounded wait instead of
	// immediately.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single writer avoids gratuitous SQLITE_BUSY between our own
	// connections; an in-memory database additionally vanishes when its last
	// connection closes, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, dialect: dialect.SQLite{}}
	if err := s.applySchema(ctx, schemaSQLite); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects to the Postgres database at the given DSN and
// applies the schema; idempotent.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	s := &Store{db: db, dialect: dialect.Postgres{}}
	if err := s.applySchema(ctx, schemaPostgres); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying handle, from which callers begin the
// transactions they pass to engine operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect this store was opened with.
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

// Begin starts a transaction at the isolation level the engine's conflict
// detection relies on: serializable, so concurrent writers surface as
// serialization failures instead of lost updates.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	if _, ok := s.dialect.(dialect.SQLite); ok {
		// SQLite transactions are serializable by definition and its driver
		// rejects explicit isolation levels.
		opts = nil
	}
	return s.db.BeginTx(ctx, opts)
}

// applySchema executes the embedded DDL. Every statement is IF NOT EXISTS,
// so reapplication is safe.
func (s *Store) applySchema(ctx context.Context, schema string) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// splitStatements breaks the schema file on statement-terminating
// semicolons. The schema contains no semicolons inside literals, so a
// line-oriented split is enough.
func splitStatements(schema string) []string {
	var statements []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
