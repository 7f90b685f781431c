package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/result"
)

// UpsertOptions holds flags for the upsert command.
type UpsertOptions struct {
	*RootOptions
	Body string
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upsert <resource> [file]",
		Short: "Insert a document, or update the one owning the same identity",
		Long: `Insert a document, or update the one owning the same identity.

The document body is read from the given file ("-" for stdin) or from
--body. Identity and references are extracted per the resource definitions.

Example:
  docstore upsert School school.json
  docstore upsert School --body '{"schoolId": 100, "nameOfInstitution": "Lincoln High"}'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpsert(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Body, "body", "", "document body as JSON (alternative to a file argument)")

	return cmd
}

func runUpsert(opts *UpsertOptions, cmd *cobra.Command, args []string) error {
	body, err := readBody(opts.Body, args[1:], cmd.InOrStdin())
	if err != nil {
		return err
	}

	s, err := newSession(cmd.Context(), cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	resourceName := args[0]
	info, err := s.requestInfo(resourceName)
	if err != nil {
		return err
	}
	docInfo, err := s.resources.Extract(resourceName, body)
	if err != nil {
		return WrapExitError(ExitCommandError, "extracting document identity", err)
	}

	var res result.UpsertResult
	err = s.withRetry(cmd.Context(), func(tx *sql.Tx) (bool, bool, error) {
		res = s.engine.Upsert(cmd.Context(), tx, model.UpsertRequest{
			ResourceInfo: info,
			DocumentInfo: docInfo,
			DocumentUUID: uuid.New(),
			Body:         body,
			TraceID:      s.traceID,
		})
		switch res.(type) {
		case result.InsertSuccess, result.UpdateSuccess:
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
	case result.InsertSuccess:
		return s.out.Success(trace, map[string]string{"id": r.DocumentUUID.String(), "status": "inserted"})
	case result.UpdateSuccess:
		return s.out.Success(trace, map[string]string{"id": r.DocumentUUID.String(), "status": "updated"})
	case result.IdentityConflict:
		return s.out.Failure(trace, "identity_conflict",
			fmt.Sprintf("a %s document with this identity already exists", r.ResourceName), r.Identity)
	case result.InvalidReferences:
		return s.out.Failure(trace, "invalid_references",
			"referenced documents do not exist", r.ResourceNames)
	case result.InvalidDescriptorReferences:
		return s.out.Failure(trace, "invalid_descriptors",
			"referenced descriptor values do not exist", r.References)
	case result.UnknownFailure:
		return s.out.Failure(trace, "unknown_failure", r.Message, nil)
	default:
		return s.out.Failure(trace, "unknown_failure", fmt.Sprintf("unexpected result %T", res), nil)
	}
}

// readBody resolves the document body from --body, a file argument, or
// stdin, in that precedence.
func readBody(flag string, fileArgs []string, stdin io.Reader) (json.RawMessage, error) {
	var raw []byte
	switch {
	case flag != "":
		raw = []byte(flag)
	case len(fileArgs) == 1 && fileArgs[0] != "-":
		var err error
		raw, err = os.ReadFile(fileArgs[0])
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "reading document body", err)
		}
	case len(fileArgs) == 1:
		var err error
		raw, err = io.ReadAll(stdin)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "reading document body from stdin", err)
		}
	default:
		return nil, NewExitError(ExitCommandError, "a document body is required: pass a file argument or --body")
	}

	if !json.Valid(raw) {
		return nil, NewExitError(ExitCommandError, "document body is not valid JSON")
	}
	return json.RawMessage(raw), nil
}
