package sqlaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/partition"
)

// FindDocumentByReferentialID returns the document owning the given
// referential identity, or nil when none does. At most one row can exist
// because of the aliases uniqueness constraint.
func (a *Action) FindDocumentByReferentialID(
	ctx context.Context,
	tx *sql.Tx,
	referentialID uuid.UUID,
	referentialPartitionKey partition.Key,
	lock dialect.LockOption,
) (*model.Document, error) {
	q := `SELECT ` + documentColumns + `
		FROM documents d
		INNER JOIN aliases a ON a.document_id = d.id AND a.document_partition_key = d.partition_key
		WHERE a.referential_partition_key = ? AND a.referential_id = ?`
	if lockSQL := a.d.LockClause(lock); lockSQL != "" {
		q += " " + lockSQL
	}

	doc, err := scanDocument(a.queryRow(ctx, tx, q, referentialPartitionKey, referentialID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document by referential id: %w", err)
	}
	return &doc, nil
}

// FindDocumentSummaryByUUID returns the body, internal id, and last-modified
// time of the document with the given uuid, or nil when it does not exist.
func (a *Action) FindDocumentSummaryByUUID(
	ctx context.Context,
	tx *sql.Tx,
	documentUUID uuid.UUID,
	documentPartitionKey partition.Key,
	lock dialect.LockOption,
) (*model.DocumentSummary, error) {
	q := `SELECT d.id, d.body, d.last_modified_at
		FROM documents d
		WHERE d.partition_key = ? AND d.document_uuid = ?`
	if lockSQL := a.d.LockClause(lock); lockSQL != "" {
		q += " " + lockSQL
	}

	var summary model.DocumentSummary
	err := a.queryRow(ctx, tx, q, documentPartitionKey, documentUUID).
		Scan(&summary.ID, &summary.Body, &summary.LastModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document by uuid: %w", err)
	}
	return &summary, nil
}

// UpdateValidation is the existence and identity-drift check performed
// before an update-by-id.
type UpdateValidation struct {
	DocumentExists         bool
	ReferentialIDUnchanged bool
}

// ValidateUpdate reports whether the target document exists and whether its
// stored referential identity matches the one freshly derived from the
// request body. A single left-joined read, locked against concurrent
// update/delete of the document row.
func (a *Action) ValidateUpdate(
	ctx context.Context,
	tx *sql.Tx,
	documentUUID uuid.UUID,
	documentPartitionKey partition.Key,
	referentialID uuid.UUID,
	referentialPartitionKey partition.Key,
) (UpdateValidation, error) {
	q := `SELECT d.document_uuid, a.referential_id
		FROM documents d
		LEFT JOIN aliases a ON a.document_id = d.id AND a.document_partition_key = d.partition_key
			AND a.referential_id = ? AND a.referential_partition_key = ?
		WHERE d.document_uuid = ? AND d.partition_key = ?`
	if lockSQL := a.d.LockClause(dialect.LockBlockUpdateDelete); lockSQL != "" {
		// Lock only the document row; the alias side of the left join may be
		// absent.
		q += " " + lockSQL + " OF d"
	}

	var storedUUID uuid.UUID
	var matched uuid.NullUUID
	err := a.queryRow(ctx, tx, q,
		referentialID, referentialPartitionKey, documentUUID, documentPartitionKey,
	).Scan(&storedUUID, &matched)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateValidation{}, nil
	}
	if err != nil {
		return UpdateValidation{}, fmt.Errorf("validate update: %w", err)
	}

	// A matching alias row proves the derived referential id is the stored
	// one; its absence means the request is attempting an identity change.
	return UpdateValidation{
		DocumentExists:         true,
		ReferentialIDUnchanged: matched.Valid,
	}, nil
}

// FindReferencingDocuments returns every document holding a reference that
// resolves (through any alias) to the given document, ordered by resource
// name.
func (a *Action) FindReferencingDocuments(
	ctx context.Context,
	tx *sql.Tx,
	documentID int64,
	documentPartitionKey partition.Key,
	lock dialect.LockOption,
) ([]model.Document, error) {
	q := `SELECT ` + documentColumns + `
		FROM documents d
		INNER JOIN "references" r ON r.parent_document_id = d.id AND r.parent_document_partition_key = d.partition_key
		INNER JOIN aliases a ON a.referential_partition_key = r.referential_partition_key AND a.referential_id = r.referential_id
		WHERE a.document_id = ? AND a.document_partition_key = ?
		ORDER BY d.resource_name, d.id`
	if lockSQL := a.d.LockClause(lock); lockSQL != "" {
		q += " " + lockSQL + " OF d"
	}

	rows, err := a.query(ctx, tx, q, documentID, documentPartitionKey)
	if err != nil {
		return nil, fmt.Errorf("find referencing documents: %w", err)
	}
	defer rows.Close()

	var documents []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("find referencing documents: %w", err)
		}
		documents = append(documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find referencing documents: %w", err)
	}
	return documents, nil
}

// FindReferencingResourceNames returns the distinct resource names of
// documents referencing the one with the given uuid. Callers that block
// deletes of still-referenced documents use this to report who holds the
// references.
func (a *Action) FindReferencingResourceNames(
	ctx context.Context,
	tx *sql.Tx,
	documentUUID uuid.UUID,
	documentPartitionKey partition.Key,
) ([]string, error) {
	// DISTINCT is applied client-side: Postgres rejects row locking combined
	// with DISTINCT, and the row counts here are small.
	q := `SELECT d.resource_name
		FROM documents d
		INNER JOIN "references" r ON r.parent_document_id = d.id AND r.parent_document_partition_key = d.partition_key
		INNER JOIN aliases a ON a.referential_partition_key = r.referential_partition_key AND a.referential_id = r.referential_id
		INNER JOIN documents d2 ON d2.id = a.document_id AND d2.partition_key = a.document_partition_key
		WHERE d2.document_uuid = ? AND d2.partition_key = ?
		ORDER BY d.resource_name`

	rows, err := a.query(ctx, tx, q, documentUUID, documentPartitionKey)
	if err != nil {
		return nil, fmt.Errorf("find referencing resource names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("find referencing resource names: %w", err)
		}
		if len(names) == 0 || names[len(names)-1] != name {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find referencing resource names: %w", err)
	}
	return names, nil
}
