// Package querysql compiles query search terms into parameterized SQL WHERE
// fragments for the documents table.
//
// Values are always parameterized, never interpolated; only JSON paths taken
// from the resource definition reach the SQL text. A term with several paths
// compiles to an OR group (one search key may live at several document
// locations); terms are AND-ed by the caller.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/model"
)

// Compile converts query terms to WHERE conditions and their parameters.
// Conditions are returned in term order, one per term, written with ?
// placeholders; the caller rebinds the assembled statement for the dialect.
//
// A malformed term (no paths, empty path segment) is the caller's fault and
// returns an error the operation maps to a known-error result.
func Compile(d dialect.Dialect, terms []model.QueryTerm) ([]string, []any, error) {
	conditions := make([]string, 0, len(terms))
	var params []any

	for i, term := range terms {
		if len(term.Paths) == 0 {
			return nil, nil, fmt.Errorf("query term %d has no document paths", i)
		}

		orConditions := make([]string, 0, len(term.Paths))
		for _, path := range term.Paths {
			segments, err := pathSegments(path)
			if err != nil {
				return nil, nil, fmt.Errorf("query term %d: %w", i, err)
			}
			orConditions = append(orConditions,
				d.JSONField("body", segments)+" "+d.LikeOperator()+" ?")
			params = append(params, term.Value)
		}

		conditions = append(conditions, "("+strings.Join(orConditions, " OR ")+")")
	}

	return conditions, params, nil
}

// pathSegments splits a JSON path ("$.address.city" or "address.city") into
// its field segments. Segments containing quotes are rejected outright since
// path text is rendered into SQL.
func pathSegments(path string) ([]string, error) {
	trimmed := strings.TrimPrefix(path, "$.")
	if trimmed == "" || trimmed == "$" {
		return nil, fmt.Errorf("empty document path %q", path)
	}

	segments := strings.Split(trimmed, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("empty segment in document path %q", path)
		}
		if strings.ContainsAny(seg, `'"`) {
			return nil, fmt.Errorf("invalid character in document path %q", path)
		}
	}
	return segments, nil
}
