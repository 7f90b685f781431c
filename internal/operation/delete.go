package operation

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/partition"
	"github.com/roach88/docstore/internal/result"
)

// DeleteByID removes the document addressed by the request's uuid along with
// its alias rows and outgoing references. Incoming references from other
// documents are not checked here; a caller wanting to block such deletes
// asks the facade who references the document before opening this operation.
func (e *Engine) DeleteByID(ctx context.Context, tx *sql.Tx, req model.DeleteRequest) result.DeleteResult {
	log := e.opLog("delete", req.TraceID).With(
		zap.String("resource_name", req.ResourceInfo.ResourceName),
		zap.String("document_uuid", req.DocumentUUID.String()),
	)

	docPartitionKey := partition.KeyFor(req.DocumentUUID)

	// Outgoing edges and aliases go first; both foreign-key into documents.
	summary, err := e.action.FindDocumentSummaryByUUID(
		ctx, tx, req.DocumentUUID, docPartitionKey, dialect.LockBlockAll)
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			log.Debug("write conflict locating document")
			return result.WriteConflict{}
		}
		log.Error("document lookup failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}
	if summary != nil {
		if err := e.action.DeleteReferencesByDocumentID(ctx, tx, summary.ID, docPartitionKey); err != nil {
			if e.classify(err) == dialect.ClassWriteConflict {
				log.Debug("write conflict deleting references")
				return result.WriteConflict{}
			}
			log.Error("reference delete failed", zap.Error(err))
			return result.UnknownFailure{Message: err.Error()}
		}
	}

	aliasRows, err := e.action.DeleteAliasesByDocumentUUID(ctx, tx, req.DocumentUUID, docPartitionKey)
	if err != nil {
		switch e.classify(err) {
		case dialect.ClassWriteConflict:
			log.Debug("write conflict deleting aliases")
			return result.WriteConflict{}
		case dialect.ClassForeignKeyViolation:
			names := e.referencingNames(ctx, tx, req.DocumentUUID, docPartitionKey)
			log.Debug("delete blocked by incoming references", zap.Strings("resource_names", names))
			return result.UnknownFailure{Message: "document is still referenced by other documents"}
		default:
			log.Error("alias delete failed", zap.Error(err))
			return result.UnknownFailure{Message: err.Error()}
		}
	}
	if aliasRows == 0 && summary != nil {
		// Every document is written with at least one alias; a document row
		// without one means a past write broke the invariant. The delete
		// still proceeds so the document itself can be removed.
		log.Error("no alias rows found for document being deleted")
	}

	docRows, err := e.action.DeleteDocumentByUUID(ctx, tx, req.DocumentUUID, docPartitionKey)
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			log.Debug("write conflict deleting document")
			return result.WriteConflict{}
		}
		log.Error("document delete failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}
	switch {
	case docRows == 0:
		return result.NotExists{}
	case docRows > 1:
		log.Error("document delete affected multiple rows", zap.Int64("rows", docRows))
		return result.UnknownFailure{Message: "document delete affected multiple rows"}
	}

	log.Debug("document deleted")
	return result.DeleteSuccess{}
}

// referencingNames is best-effort diagnostics after a blocked delete; the
// transaction may already be poisoned, so errors just yield an empty list.
func (e *Engine) referencingNames(
	ctx context.Context,
	tx *sql.Tx,
	documentUUID uuid.UUID,
	pk partition.Key,
) []string {
	names, err := e.action.FindReferencingResourceNames(ctx, tx, documentUUID, pk)
	if err != nil {
		return nil
	}
	return names
}
