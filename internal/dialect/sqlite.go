package dialect

import (
	"errors"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// SQLite is the embedded backend, used by tests and single-node deployments.
//
// SQLite takes a whole-database write lock, so the conflict surface is
// coarser than Postgres: lock contention shows up as SQLITE_BUSY or
// SQLITE_LOCKED rather than a row-level serialization failure. The engine
// treats both the same way — retry the operation in a fresh transaction.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) Rebind(query string) string { return query }

// JSONField renders json_extract(body, '$.a.b'). json_extract returns the
// unquoted scalar for text values, matching the text comparison done on the
// Postgres side.
func (SQLite) JSONField(column string, path []string) string {
	var b strings.Builder
	b.WriteString("json_extract(")
	b.WriteString(column)
	b.WriteString(", '$")
	for _, step := range path {
		b.WriteByte('.')
		b.WriteString(step)
	}
	b.WriteString("')")
	return b.String()
}

// LikeOperator is plain LIKE; SQLite's LIKE is already case-insensitive for
// ASCII, the same coverage the store promises.
func (SQLite) LikeOperator() string { return "LIKE" }

// LockClause is always empty: the database-level write lock makes row locks
// meaningless.
func (SQLite) LockClause(LockOption) string { return "" }

func (SQLite) Now() string { return "CURRENT_TIMESTAMP" }

func (SQLite) Classify(err error) ErrorClass {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return ClassOther
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return ClassWriteConflict
	case sqlite3.ErrConstraint:
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ClassUniqueViolation
		case sqlite3.ErrConstraintForeignKey:
			return ClassForeignKeyViolation
		}
	}
	return ClassOther
}
