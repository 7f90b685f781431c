package operation

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/partition"
	"github.com/roach88/docstore/internal/result"
)

// referenceOutcome is the internal result of rewriting a document's outgoing
// edges. Exactly one field group is set.
type referenceOutcome struct {
	ok                 bool
	writeConflict      bool
	invalidRefs        []string
	invalidDescriptors []model.DescriptorReference
	err                error
}

// writeReferences replaces the document's recorded outgoing edges with those
// of the request's document info. Targets are checked against aliases first
// so a dangling reference is reported by name; the foreign key still
// backstops a concurrent alias removal.
func (e *Engine) writeReferences(
	ctx context.Context,
	tx *sql.Tx,
	log *zap.Logger,
	documentID int64,
	documentPartitionKey partition.Key,
	info model.DocumentInfo,
	replace bool,
) referenceOutcome {
	if replace {
		if err := e.action.DeleteReferencesByDocumentID(ctx, tx, documentID, documentPartitionKey); err != nil {
			if e.classify(err) == dialect.ClassWriteConflict {
				return referenceOutcome{writeConflict: true}
			}
			return referenceOutcome{err: err}
		}
	}

	targets := info.ReferenceTargets()
	if len(targets) == 0 {
		return referenceOutcome{ok: true}
	}

	invalidIDs, err := e.action.FindInvalidReferentialIDs(ctx, tx, targets)
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			return referenceOutcome{writeConflict: true}
		}
		return referenceOutcome{err: err}
	}
	if len(invalidIDs) > 0 {
		invalid := make(map[string]bool, len(invalidIDs))
		for _, id := range invalidIDs {
			invalid[id.String()] = true
		}
		if descriptors := invalidDescriptors(info.DescriptorReferences, invalid); len(descriptors) > 0 {
			log.Debug("descriptor references did not resolve", zap.Int("count", len(descriptors)))
			return referenceOutcome{invalidDescriptors: descriptors}
		}
		names := invalidRefNames(info.DocumentReferences, invalid)
		log.Debug("document references did not resolve", zap.Strings("resource_names", names))
		return referenceOutcome{invalidRefs: names}
	}

	if err := e.action.InsertReferences(ctx, tx, documentID, documentPartitionKey, targets); err != nil {
		switch e.classify(err) {
		case dialect.ClassWriteConflict:
			return referenceOutcome{writeConflict: true}
		case dialect.ClassForeignKeyViolation:
			// An alias vanished between the validity check and the insert.
			// Report every document reference; the caller cannot tell which
			// one raced, and the request will be re-validated on retry.
			names := invalidRefNames(info.DocumentReferences, allIDs(info.DocumentReferences))
			log.Debug("reference insert hit foreign key violation", zap.Strings("resource_names", names))
			return referenceOutcome{invalidRefs: names}
		default:
			return referenceOutcome{err: err}
		}
	}
	return referenceOutcome{ok: true}
}

func allIDs(refs []model.DocumentReference) map[string]bool {
	ids := make(map[string]bool, len(refs))
	for _, ref := range refs {
		ids[ref.ReferentialID.String()] = true
	}
	return ids
}

// upsertOutcome maps a reference outcome onto the upsert result set. Returns
// nil when the outcome is ok.
func (o referenceOutcome) upsertOutcome(log *zap.Logger) result.UpsertResult {
	switch {
	case o.ok:
		return nil
	case o.writeConflict:
		return result.WriteConflict{}
	case o.err != nil:
		log.Error("reference write failed", zap.Error(o.err))
		return result.UnknownFailure{Message: o.err.Error()}
	case len(o.invalidDescriptors) > 0:
		return result.InvalidDescriptorReferences{References: o.invalidDescriptors}
	default:
		return result.InvalidReferences{ResourceNames: o.invalidRefs}
	}
}

// updateOutcome maps a reference outcome onto the update result set. Returns
// nil when the outcome is ok.
func (o referenceOutcome) updateOutcome(log *zap.Logger) result.UpdateResult {
	switch {
	case o.ok:
		return nil
	case o.writeConflict:
		return result.WriteConflict{}
	case o.err != nil:
		log.Error("reference write failed", zap.Error(o.err))
		return result.UnknownFailure{Message: o.err.Error()}
	case len(o.invalidDescriptors) > 0:
		return result.InvalidDescriptorReferences{References: o.invalidDescriptors}
	default:
		return result.InvalidReferences{ResourceNames: o.invalidRefs}
	}
}
