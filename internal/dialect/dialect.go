// Package dialect abstracts the differences between supported SQL backends:
// placeholder style, JSON field extraction, row locking, and — most
// importantly — classification of backend errors into the engine's conflict
// taxonomy. Everything else about the store (schema shape, statement
// structure) is shared.
package dialect

import "strings"

// ErrorClass is the engine-relevant classification of a backend error.
type ErrorClass int

const (
	// ClassOther is any error the engine has no special handling for.
	ClassOther ErrorClass = iota

	// ClassWriteConflict is a serialization failure or detected deadlock.
	// The whole operation may be retried in a fresh transaction.
	ClassWriteConflict

	// ClassUniqueViolation is a uniqueness constraint violation, raised when
	// two documents contend for the same referential identity.
	ClassUniqueViolation

	// ClassForeignKeyViolation is a referential constraint violation, raised
	// when a Reference row targets a referential id with no Alias.
	ClassForeignKeyViolation
)

// LockOption selects the row locking applied by facade reads.
type LockOption int

const (
	// LockNone reads without blocking concurrent writers.
	LockNone LockOption = iota

	// LockBlockUpdateDelete blocks concurrent update/delete of the rows read.
	LockBlockUpdateDelete

	// LockBlockAll blocks all concurrent access to the rows read.
	LockBlockAll
)

// Dialect is implemented once per supported backend.
type Dialect interface {
	// Name is the database/sql driver name, also used in logs.
	Name() string

	// Rebind converts a query written with ? placeholders to the backend's
	// placeholder style.
	Rebind(query string) string

	// JSONField renders an expression extracting a (possibly nested) text
	// field from the given JSON column.
	JSONField(column string, path []string) string

	// LikeOperator is the case-insensitive pattern-match operator.
	LikeOperator() string

	// LockClause renders the trailing lock clause for a SELECT, or "".
	LockClause(LockOption) string

	// Now is the expression for the current timestamp, evaluated at
	// statement execution rather than transaction start.
	Now() string

	// Classify maps a backend error into the engine's taxonomy. Must return
	// ClassOther for nil or foreign errors.
	Classify(err error) ErrorClass
}

// rebindNumbered rewrites ? placeholders as prefix1..prefixN. Placeholders
// never appear inside literals in facade SQL, so a plain scan is enough.
func rebindNumbered(query, prefix string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteString(prefix)
		writeInt(&b, n)
	}
	return b.String()
}

func writeInt(b *strings.Builder, n int) {
	if n >= 10 {
		writeInt(b, n/10)
	}
	b.WriteByte(byte('0' + n%10))
}
