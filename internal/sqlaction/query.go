package sqlaction

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// QueryDocuments returns the bodies of documents of one resource type
// matching the given pre-compiled WHERE conditions, in creation order.
// Conditions are AND-ed; args supply their placeholders in order. Limit must
// be positive; offset may be zero.
func (a *Action) QueryDocuments(
	ctx context.Context,
	tx *sql.Tx,
	resourceName string,
	conditions []string,
	args []any,
	offset, limit int,
) ([]json.RawMessage, error) {
	q := `SELECT d.body FROM documents d WHERE d.resource_name = ?`
	queryArgs := make([]any, 0, len(args)+3)
	queryArgs = append(queryArgs, resourceName)
	for _, cond := range conditions {
		q += " AND " + cond
	}
	queryArgs = append(queryArgs, args...)
	q += ` ORDER BY d.created_at, d.id LIMIT ? OFFSET ?`
	queryArgs = append(queryArgs, limit, offset)

	rows, err := a.query(ctx, tx, q, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	bodies := []json.RawMessage{}
	for rows.Next() {
		var body json.RawMessage
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("query documents: %w", err)
		}
		bodies = append(bodies, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return bodies, nil
}

// CountDocuments returns the total number of documents matching the same
// shape of conditions as QueryDocuments, ignoring pagination.
func (a *Action) CountDocuments(
	ctx context.Context,
	tx *sql.Tx,
	resourceName string,
	conditions []string,
	args []any,
) (int64, error) {
	q := `SELECT COUNT(*) FROM documents d WHERE d.resource_name = ?`
	queryArgs := make([]any, 0, len(args)+1)
	queryArgs = append(queryArgs, resourceName)
	for _, cond := range conditions {
		q += " AND " + cond
	}
	queryArgs = append(queryArgs, args...)

	var total int64
	if err := a.queryRow(ctx, tx, q, queryArgs...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return total, nil
}
