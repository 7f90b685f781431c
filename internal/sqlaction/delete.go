package sqlaction

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/partition"
)

// DeleteAliasesByDocumentUUID removes every alias of the document, including
// a superclass alias. Must run before DeleteDocumentByUUID; the foreign key
// from references blocks this while any document still points at an alias
// being removed. Returns the number of alias rows removed.
func (a *Action) DeleteAliasesByDocumentUUID(
	ctx context.Context,
	tx *sql.Tx,
	documentUUID uuid.UUID,
	documentPartitionKey partition.Key,
) (int64, error) {
	q := `DELETE FROM aliases
		WHERE document_id IN
			(SELECT d.id FROM documents d WHERE d.document_uuid = ? AND d.partition_key = ?)
		AND document_partition_key = ?`

	res, err := a.exec(ctx, tx, q, documentUUID, documentPartitionKey, documentPartitionKey)
	if err != nil {
		return 0, fmt.Errorf("delete aliases: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete aliases: %w", err)
	}
	return n, nil
}

// DeleteDocumentByUUID removes the document row. Returns the number of rows
// removed: 0 means the document was already gone.
func (a *Action) DeleteDocumentByUUID(
	ctx context.Context,
	tx *sql.Tx,
	documentUUID uuid.UUID,
	documentPartitionKey partition.Key,
) (int64, error) {
	q := `DELETE FROM documents
		WHERE document_uuid = ? AND partition_key = ?`

	res, err := a.exec(ctx, tx, q, documentUUID, documentPartitionKey)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	return n, nil
}
