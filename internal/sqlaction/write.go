package sqlaction

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/partition"
)

// InsertDocument inserts a document row and returns its assigned internal id.
// Timestamps come from the backend clock at statement execution time.
func (a *Action) InsertDocument(ctx context.Context, tx *sql.Tx, doc model.Document) (int64, error) {
	q := `INSERT INTO documents
		(partition_key, document_uuid, resource_name, resource_version,
		 is_descriptor, project_name, body, created_at, last_modified_at,
		 last_modified_trace_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ` + a.d.Now() + `, ` + a.d.Now() + `, ?)
		RETURNING id`

	var id int64
	err := a.queryRow(ctx, tx, q,
		doc.PartitionKey, doc.UUID, doc.ResourceName, doc.ResourceVersion,
		doc.IsDescriptor, doc.ProjectName, []byte(doc.Body), doc.LastModifiedTraceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// InsertAlias records that a referential identity resolves to the given
// document. The aliases uniqueness constraint makes this the contention
// point for concurrent inserts of the same identity.
func (a *Action) InsertAlias(ctx context.Context, tx *sql.Tx, alias model.Alias) error {
	q := `INSERT INTO aliases
		(referential_partition_key, referential_id, document_id, document_partition_key)
		VALUES (?, ?, ?, ?)`

	_, err := a.exec(ctx, tx, q,
		alias.ReferentialPartitionKey, alias.ReferentialID,
		alias.DocumentID, alias.DocumentPartitionKey,
	)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	return nil
}

// UpdateDocumentBody replaces the body and touches the modification metadata
// of the document addressed by uuid. Returns the number of rows updated
// (0 when the document vanished between validation and write).
func (a *Action) UpdateDocumentBody(
	ctx context.Context,
	tx *sql.Tx,
	documentUUID uuid.UUID,
	documentPartitionKey partition.Key,
	body []byte,
	traceID model.TraceID,
) (int64, error) {
	q := `UPDATE documents
		SET body = ?, last_modified_at = ` + a.d.Now() + `, last_modified_trace_id = ?
		WHERE document_uuid = ? AND partition_key = ?`

	res, err := a.exec(ctx, tx, q, body, string(traceID), documentUUID, documentPartitionKey)
	if err != nil {
		return 0, fmt.Errorf("update document body: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update document body: %w", err)
	}
	return n, nil
}

// FindAliasIDs returns the surrogate ids of the document's alias rows in
// insertion order, so the primary alias comes before a superclass alias.
func (a *Action) FindAliasIDs(
	ctx context.Context,
	tx *sql.Tx,
	documentUUID uuid.UUID,
	documentPartitionKey partition.Key,
) ([]int64, error) {
	q := `SELECT a.id
		FROM aliases a
		INNER JOIN documents d ON d.id = a.document_id AND d.partition_key = a.document_partition_key
		WHERE d.document_uuid = ? AND d.partition_key = ?
		ORDER BY a.id`

	rows, err := a.query(ctx, tx, q, documentUUID, documentPartitionKey)
	if err != nil {
		return nil, fmt.Errorf("find alias ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("find alias ids: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find alias ids: %w", err)
	}
	return ids, nil
}

// UpdateAliasReferentialID repoints one alias row onto a new referential
// identity. The ON UPDATE CASCADE on references keeps existing edges
// resolving through the moved alias. Returns the number of rows updated.
func (a *Action) UpdateAliasReferentialID(
	ctx context.Context,
	tx *sql.Tx,
	aliasID int64,
	referentialID uuid.UUID,
	referentialPartitionKey partition.Key,
) (int64, error) {
	q := `UPDATE aliases
		SET referential_id = ?, referential_partition_key = ?
		WHERE id = ?`

	res, err := a.exec(ctx, tx, q, referentialID, referentialPartitionKey, aliasID)
	if err != nil {
		return 0, fmt.Errorf("update alias referential id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update alias referential id: %w", err)
	}
	return n, nil
}
