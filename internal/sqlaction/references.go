package sqlaction

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/partition"
)

// FindInvalidReferentialIDs returns the subset of targets with no alias row,
// in target order. Run before InsertReferences so a dangling reference is
// reported by identity instead of surfacing as a bare constraint violation.
func (a *Action) FindInvalidReferentialIDs(
	ctx context.Context,
	tx *sql.Tx,
	targets []model.ReferenceTarget,
) ([]uuid.UUID, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	var b strings.Builder
	args := make([]any, 0, len(targets)*2)
	for i, t := range targets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?)")
		args = append(args, t.ReferentialPartitionKey, t.ReferentialID)
	}
	q := `SELECT a.referential_partition_key, a.referential_id
		FROM aliases a
		WHERE (a.referential_partition_key, a.referential_id) IN (` + b.String() + `)`

	rows, err := a.query(ctx, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find invalid referential ids: %w", err)
	}
	defer rows.Close()

	found := make(map[uuid.UUID]bool, len(targets))
	for rows.Next() {
		var pk partition.Key
		var id uuid.UUID
		if err := rows.Scan(&pk, &id); err != nil {
			return nil, fmt.Errorf("find invalid referential ids: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find invalid referential ids: %w", err)
	}

	var invalid []uuid.UUID
	seen := make(map[uuid.UUID]bool, len(targets))
	for _, t := range targets {
		if !found[t.ReferentialID] && !seen[t.ReferentialID] {
			seen[t.ReferentialID] = true
			invalid = append(invalid, t.ReferentialID)
		}
	}
	return invalid, nil
}

// InsertReferences records the outgoing edges of a document in one multi-row
// insert. The foreign key to aliases still backstops a target whose alias is
// deleted between the validity check and this insert.
func (a *Action) InsertReferences(
	ctx context.Context,
	tx *sql.Tx,
	parentDocumentID int64,
	parentPartitionKey partition.Key,
	targets []model.ReferenceTarget,
) error {
	if len(targets) == 0 {
		return nil
	}

	var b strings.Builder
	args := make([]any, 0, len(targets)*4)
	for i, t := range targets {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, parentDocumentID, parentPartitionKey, t.ReferentialID, t.ReferentialPartitionKey)
	}
	q := `INSERT INTO "references"
		(parent_document_id, parent_document_partition_key, referential_id, referential_partition_key)
		VALUES ` + b.String()

	if _, err := a.exec(ctx, tx, q, args...); err != nil {
		return fmt.Errorf("insert references: %w", err)
	}
	return nil
}

// DeleteReferencesByDocumentID removes every outgoing edge of a document,
// ahead of re-deriving them from a new body.
func (a *Action) DeleteReferencesByDocumentID(
	ctx context.Context,
	tx *sql.Tx,
	parentDocumentID int64,
	parentPartitionKey partition.Key,
) error {
	q := `DELETE FROM "references"
		WHERE parent_document_id = ? AND parent_document_partition_key = ?`

	if _, err := a.exec(ctx, tx, q, parentDocumentID, parentPartitionKey); err != nil {
		return fmt.Errorf("delete references: %w", err)
	}
	return nil
}
