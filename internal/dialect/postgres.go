package dialect

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the engine reacts to.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

// Postgres is the production backend, running over the pgx stdlib driver.
// Transactions are expected at an isolation level that surfaces write-write
// conflicts as serialization failures (repeatable read or serializable).
type Postgres struct{}

func (Postgres) Name() string { return "pgx" }

func (Postgres) Rebind(query string) string { return rebindNumbered(query, "$") }

// JSONField renders jsonb traversal: body->'a'->>'b'. The final step uses
// ->> so the result is text, matching the original store's comparison
// semantics.
func (Postgres) JSONField(column string, path []string) string {
	var b strings.Builder
	b.WriteString(column)
	for i, step := range path {
		if i == len(path)-1 {
			b.WriteString("->>")
		} else {
			b.WriteString("->")
		}
		b.WriteByte('\'')
		b.WriteString(step)
		b.WriteByte('\'')
	}
	return b.String()
}

func (Postgres) LikeOperator() string { return "ILIKE" }

func (Postgres) LockClause(lock LockOption) string {
	switch lock {
	case LockBlockUpdateDelete:
		return "FOR SHARE"
	case LockBlockAll:
		return "FOR UPDATE"
	default:
		return ""
	}
}

func (Postgres) Now() string { return "clock_timestamp()" }

func (Postgres) Classify(err error) ErrorClass {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ClassOther
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return ClassWriteConflict
	case pgUniqueViolation:
		return ClassUniqueViolation
	case pgForeignKeyViolation:
		return ClassForeignKeyViolation
	default:
		return ClassOther
	}
}
