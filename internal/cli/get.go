package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/result"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Retrieve a document by its identifier",
		Long: `Retrieve a document by its identifier.

Example:
  docstore get School 6c9398a1-3c42-45f0-9a29-9b178df36eb9`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd, args)
		},
	}
}

func runGet(opts *RootOptions, cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[1])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid document id", err)
	}

	s, err := newSession(cmd.Context(), cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	info, err := s.requestInfo(args[0])
	if err != nil {
		return err
	}

	var res result.GetResult
	err = s.withRetry(cmd.Context(), func(tx *sql.Tx) (bool, bool, error) {
		res = s.engine.GetByID(cmd.Context(), tx, model.GetRequest{
			ResourceInfo: info,
			DocumentUUID: id,
			TraceID:      s.traceID,
		})
		return false, false, nil
	})
	if err != nil {
		return err
	}

	trace := string(s.traceID)
	switch r := res.(type) {
	case result.GetSuccess:
		return s.out.Success(trace, json.RawMessage(r.Body))
	case result.NotExists:
		return s.out.Failure(trace, "not_found", fmt.Sprintf("no document with id %s", id), nil)
	case result.UnknownFailure:
		return s.out.Failure(trace, "unknown_failure", r.Message, nil)
	default:
		return s.out.Failure(trace, "unknown_failure", fmt.Sprintf("unexpected result %T", res), nil)
	}
}
