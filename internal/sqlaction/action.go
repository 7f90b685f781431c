// Package sqlaction is the relational action facade: the only place SQL is
// executed against the documents, aliases, and references tables.
//
// Every method performs exactly one logical action against a caller-owned
// transaction and returns plain data (rows, a row count, a found/not-found
// value). The facade never interprets the business meaning of an outcome,
// never retries, and never rolls back; backend errors — including
// serialization failures and deadlocks — are returned as-is for the
// operation layer to classify.
package sqlaction

import (
	"context"
	"database/sql"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/model"
)

// Action executes facade statements for one dialect. Stateless; safe for
// concurrent use across transactions.
type Action struct {
	d dialect.Dialect
}

// New returns a facade bound to the given dialect.
func New(d dialect.Dialect) *Action {
	return &Action{d: d}
}

// Dialect exposes the dialect for error classification by the operations.
func (a *Action) Dialect() dialect.Dialect {
	return a.d
}

const documentColumns = `d.id, d.partition_key, d.document_uuid, d.resource_name,
	d.resource_version, d.is_descriptor, d.project_name, d.body,
	d.created_at, d.last_modified_at, d.last_modified_trace_id`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (model.Document, error) {
	var doc model.Document
	err := row.Scan(
		&doc.ID,
		&doc.PartitionKey,
		&doc.UUID,
		&doc.ResourceName,
		&doc.ResourceVersion,
		&doc.IsDescriptor,
		&doc.ProjectName,
		&doc.Body,
		&doc.CreatedAt,
		&doc.LastModifiedAt,
		&doc.LastModifiedTraceID,
	)
	return doc, err
}

func (a *Action) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return tx.ExecContext(ctx, a.d.Rebind(query), args...)
}

func (a *Action) query(ctx context.Context, tx *sql.Tx, query string, args ...any) (*sql.Rows, error) {
	return tx.QueryContext(ctx, a.d.Rebind(query), args...)
}

func (a *Action) queryRow(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	return tx.QueryRowContext(ctx, a.d.Rebind(query), args...)
}
