package cli

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/result"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete a document by its identifier",
		Long: `Delete a document by its identifier.

A document still referenced by other documents cannot be deleted; the
referencing documents must be updated or removed first.

Example:
  docstore delete School 6c9398a1-3c42-45f0-9a29-9b178df36eb9`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, cmd, args)
		},
	}
}

func runDelete(opts *RootOptions, cmd *cobra.Command, args []string) error {
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

	var res result.DeleteResult
	err = s.withRetry(cmd.Context(), func(tx *sql.Tx) (bool, bool, error) {
		res = s.engine.DeleteByID(cmd.Context(), tx, model.DeleteRequest{
			ResourceInfo: info,
			DocumentUUID: id,
			TraceID:      s.traceID,
		})
		switch res.(type) {
		case result.DeleteSuccess:
			return true, false, nil
		case result.WriteConflict:
			return false, true, nil
		default:
			return false, false, nil
		}
	})
	if err != nil {
		return err
	}

	trace := string(s.traceID)
	switch r := res.(type) {
	case result.DeleteSuccess:
		return s.out.Success(trace, map[string]string{"id": id.String(), "status": "deleted"})
	case result.NotExists:
		return s.out.Failure(trace, "not_found", fmt.Sprintf("no document with id %s", id), nil)
	case result.UnknownFailure:
		return s.out.Failure(trace, "unknown_failure", r.Message, nil)
	default:
		return s.out.Failure(trace, "unknown_failure", fmt.Sprintf("unexpected result %T", res), nil)
	}
}
