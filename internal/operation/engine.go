// Package operation implements the engine's five operations: Upsert,
// UpdateByID, DeleteByID, GetByID, and Query. Each runs entirely inside a
// caller-owned transaction and returns a closed result variant; the caller
// commits on success variants and rolls back (and optionally retries) on
// failure variants. The operations orchestrate facade actions and classify
// backend errors; they never commit, roll back, or retry.
package operation

import (
	"go.uber.org/zap"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/sqlaction"
)

// Engine executes document operations. Stateless and safe for concurrent use
// across independent transactions.
type Engine struct {
	action *sqlaction.Action
	log    *zap.Logger
}

// New returns an engine executing against the given facade.
func New(action *sqlaction.Action, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{action: action, log: log}
}

func (e *Engine) classify(err error) dialect.ErrorClass {
	return e.action.Dialect().Classify(err)
}

func (e *Engine) opLog(op string, traceID model.TraceID) *zap.Logger {
	return e.log.With(zap.String("operation", op), zap.String("trace_id", string(traceID)))
}

// invalidRefNames returns the distinct resource names of document references
// whose referential id is in the invalid set, preserving reference order.
func invalidRefNames(refs []model.DocumentReference, invalid map[string]bool) []string {
	var names []string
	seen := map[string]bool{}
	for _, ref := range refs {
		if invalid[ref.ReferentialID.String()] && !seen[ref.ResourceName] {
			seen[ref.ResourceName] = true
			names = append(names, ref.ResourceName)
		}
	}
	return names
}

// invalidDescriptors returns the descriptor references whose referential id
// is in the invalid set.
func invalidDescriptors(refs []model.DescriptorReference, invalid map[string]bool) []model.DescriptorReference {
	var out []model.DescriptorReference
	for _, ref := range refs {
		if invalid[ref.ReferentialID.String()] {
			out = append(out, ref)
		}
	}
	return out
}
