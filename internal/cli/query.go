package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/result"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Filters []string
	Offset  int
	Limit   int
	Total   bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <resource>",
		Short: "List documents of a resource type",
		Long: `List documents of a resource type, optionally filtered by body fields.

Filters take the form path=value, where path is a JSON path into the body.
Multiple filters must all match.

Example:
  docstore query School --filter '$.nameOfInstitution=Lincoln High' --limit 10 --total`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, args)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "body filter as path=value (repeatable)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of documents to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 25, "maximum documents to return")
	cmd.Flags().BoolVar(&opts.Total, "total", false, "also compute the total match count")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command, args []string) error {
	terms, err := parseFilters(opts.Filters)
	if err != nil {
		return err
	}

	s, err := newSession(cmd.Context(), cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := s.requestInfo(args[0])
	if err != nil {
		return err
	}

	var res result.QueryResult
	err = s.withRetry(cmd.Context(), func(tx *sql.Tx) (bool, bool, error) {
		res = s.engine.Query(cmd.Context(), tx, model.QueryRequest{
			ResourceInfo: info,
			Terms:        terms,
			Pagination: model.Pagination{
				Offset:       opts.Offset,
				Limit:        opts.Limit,
				IncludeTotal: opts.Total,
			},
			TraceID: s.traceID,
		})
		return false, false, nil
	})
	if err != nil {
		return err
	}

	trace := string(s.traceID)
	switch r := res.(type) {
	case result.QuerySuccess:
		payload := map[string]interface{}{"documents": rawDocuments(r.Documents)}
		if r.Total != nil {
			payload["total"] = *r.Total
		}
		return s.out.Success(trace, payload)
	case result.QueryInvalid:
		return s.out.Failure(trace, "invalid_query", r.Message, nil)
	case result.UnknownFailure:
		return s.out.Failure(trace, "unknown_failure", r.Message, nil)
	default:
		return s.out.Failure(trace, "unknown_failure", fmt.Sprintf("unexpected result %T", res), nil)
	}
}

// parseFilters converts path=value flags into query terms.
func parseFilters(filters []string) ([]model.QueryTerm, error) {
	terms := make([]model.QueryTerm, 0, len(filters))
	for _, f := range filters {
		path, value, ok := strings.Cut(f, "=")
		if !ok || path == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid filter %q: expected path=value", f))
		}
		terms = append(terms, model.QueryTerm{Paths: []string{path}, Value: value})
	}
	return terms, nil
}

// rawDocuments keeps stored bodies as raw JSON through output encoding.
func rawDocuments(docs []json.RawMessage) []json.RawMessage {
	if docs == nil {
		return []json.RawMessage{}
	}
	return docs
}
