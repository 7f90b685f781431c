package cli

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/operation"
	"github.com/roach88/docstore/internal/resourceconfig"
	"github.com/roach88/docstore/internal/retry"
	"github.com/roach88/docstore/internal/sqlaction"
	"github.com/roach88/docstore/internal/store"
)

// session bundles everything a command needs to run engine operations: the
// open store, the loaded resource definitions, the engine, and the output
// formatter. One session per command invocation.
type session struct {
	store     *store.Store
	resources *resourceconfig.Config
	engine    *operation.Engine
	log       *zap.Logger
	out       *OutputFormatter
	traceID   model.TraceID
}

func newSession(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*session, error) {
	log, err := opts.logger()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "building logger", err)
	}

	resources, err := opts.loadResources()
	if err != nil {
		return nil, err
	}

	st, err := opts.openStore(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening database", err)
	}

	return &session{
		store:     st,
		resources: resources,
		engine:    operation.New(sqlaction.New(st.Dialect()), log),
		log:       log,
		out:       opts.formatter(cmd),
		traceID:   model.TraceID(uuid.NewString()),
	}, nil
}

func (s *session) Close() {
	s.store.Close()
	_ = s.log.Sync()
}

// requestInfo looks up the resource metadata for a command's resource
// argument.
func (s *session) requestInfo(resourceName string) (model.ResourceInfo, error) {
	info, err := s.resources.Info(resourceName)
	if err != nil {
		return model.ResourceInfo{}, WrapExitError(ExitCommandError, "unknown resource", err)
	}
	return info, nil
}

// withRetry runs op in its own transaction, committing when op says to, and
// re-running the whole thing on write conflict per the default policy.
func (s *session) withRetry(ctx context.Context, op func(tx *sql.Tx) (commit, conflict bool, err error)) error {
	return retry.DefaultPolicy.Do(ctx, s.log, func(ctx context.Context) (bool, error) {
		tx, err := s.store.Begin(ctx)
		if err != nil {
			return false, WrapExitError(ExitCommandError, "beginning transaction", err)
		}

		commit, conflict, err := op(tx)
		if err != nil || conflict || !commit {
			_ = tx.Rollback()
			return conflict, err
		}
		if err := tx.Commit(); err != nil {
			return false, WrapExitError(ExitCommandError, "committing transaction", err)
		}
		return false, nil
	})
}
