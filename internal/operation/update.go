package operation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/docstore/internal/dialect"
	"github.com/roach88/docstore/internal/model"
	"github.com/roach88/docstore/internal/partition"
	"github.com/roach88/docstore/internal/result"
)

// UpdateByID overwrites the document addressed by the request's uuid. When
// the body's freshly derived referential identity differs from the stored
// one, the update is an identity change: permitted only for resource types
// that allow it, and followed by a recursive cascade that rewrites every
// document referencing the changed one.
func (e *Engine) UpdateByID(ctx context.Context, tx *sql.Tx, req model.UpdateRequest) result.UpdateResult {
	log := e.opLog("update", req.TraceID).With(
		zap.String("resource_name", req.ResourceInfo.ResourceName),
		zap.String("document_uuid", req.DocumentUUID.String()),
	)

	docPartitionKey := partition.KeyFor(req.DocumentUUID)
	referentialID := req.DocumentInfo.ReferentialID

	validation, err := e.action.ValidateUpdate(ctx, tx,
		req.DocumentUUID, docPartitionKey,
		referentialID, partition.KeyFor(referentialID))
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			log.Debug("write conflict validating update")
			return result.WriteConflict{}
		}
		log.Error("update validation failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}
	if !validation.DocumentExists {
		return result.NotExists{}
	}

	identityChanged := !validation.ReferentialIDUnchanged
	if identityChanged {
		if !req.ResourceInfo.AllowIdentityUpdates {
			log.Debug("identity change rejected")
			return result.ImmutableIdentity{
				Message: fmt.Sprintf("identifying values for the %s resource cannot be changed; delete and recreate the resource instead", req.ResourceInfo.ResourceName),
			}
		}
		if res := e.repointAliases(ctx, tx, log, req, docPartitionKey); res != nil {
			return res
		}
	}

	// Snapshot the pre-update body before overwriting; the cascade hands it
	// to the handler alongside the new body.
	before, err := e.action.FindDocumentSummaryByUUID(
		ctx, tx, req.DocumentUUID, docPartitionKey, dialect.LockBlockAll)
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			return result.WriteConflict{}
		}
		log.Error("pre-update snapshot failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}
	if before == nil {
		return result.NotExists{}
	}

	body, err := model.StampID(req.Body, req.DocumentUUID)
	if err != nil {
		log.Error("body rejected", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}

	rows, err := e.action.UpdateDocumentBody(
		ctx, tx, req.DocumentUUID, docPartitionKey, body, req.TraceID)
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			log.Debug("write conflict overwriting body")
			return result.WriteConflict{}
		}
		log.Error("body overwrite failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}
	switch {
	case rows == 0:
		return result.NotExists{}
	case rows > 1:
		log.Error("body overwrite affected multiple rows", zap.Int64("rows", rows))
		return result.UnknownFailure{Message: "document update affected multiple rows"}
	}

	out := e.writeReferences(ctx, tx, log, before.ID, docPartitionKey, req.DocumentInfo, true)
	if res := out.updateOutcome(log); res != nil {
		return res
	}

	if identityChanged {
		path := map[uuid.UUID]bool{req.DocumentUUID: true}
		if res := e.cascade(ctx, tx, log, req.CascadeHandler, req.ResourceInfo,
			before.ID, docPartitionKey, before.Body, body, req.TraceID, path); res != nil {
			return res
		}
	}

	log.Debug("document updated")
	return result.UpdateSuccess{DocumentUUID: req.DocumentUUID}
}

// repointAliases moves the document's alias rows onto the new referential
// identities: the primary alias first, then the superclass alias when the
// resource has one. Alias rows keep insertion order, so index 0 is always
// the primary.
func (e *Engine) repointAliases(
	ctx context.Context,
	tx *sql.Tx,
	log *zap.Logger,
	req model.UpdateRequest,
	docPartitionKey partition.Key,
) result.UpdateResult {
	aliasIDs, err := e.action.FindAliasIDs(ctx, tx, req.DocumentUUID, docPartitionKey)
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			return result.WriteConflict{}
		}
		log.Error("alias lookup failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}
	if len(aliasIDs) == 0 {
		return result.NotExists{}
	}

	targets := []model.ReferenceTarget{model.TargetOf(req.DocumentInfo.ReferentialID)}
	if super := req.DocumentInfo.Superclass; super != nil && len(aliasIDs) > 1 {
		targets = append(targets, model.TargetOf(super.ReferentialID))
	}

	for i, target := range targets {
		rows, err := e.action.UpdateAliasReferentialID(
			ctx, tx, aliasIDs[i], target.ReferentialID, target.ReferentialPartitionKey)
		if err != nil {
			switch e.classify(err) {
			case dialect.ClassWriteConflict:
				log.Debug("write conflict repointing alias")
				return result.WriteConflict{}
			case dialect.ClassUniqueViolation:
				// The new identity is already owned by another document;
				// concurrent writers land here instead of duplicating it.
				log.Debug("identity conflict repointing alias")
				return result.WriteConflict{}
			default:
				log.Error("alias repoint failed", zap.Error(err))
				return result.UnknownFailure{Message: err.Error()}
			}
		}
		if rows == 0 {
			return result.NotExists{}
		}
	}

	log.Debug("aliases repointed", zap.Int("count", len(targets)))
	return nil
}

// cascade rewrites the body of every document referencing the one whose
// identity just changed, recursing whenever the handler reports that a
// parent's own identity changed too. A document reachable along several
// acyclic paths is rewritten once per path. Only a back-edge to a document
// still on the current recursion path is a cycle, and that turns into a
// hard failure instead of an endless loop.
func (e *Engine) cascade(
	ctx context.Context,
	tx *sql.Tx,
	log *zap.Logger,
	handler model.CascadeHandler,
	referenced model.ResourceInfo,
	documentID int64,
	documentPartitionKey partition.Key,
	oldBody, newBody []byte,
	traceID model.TraceID,
	path map[uuid.UUID]bool,
) result.UpdateResult {
	if handler == nil {
		log.Error("identity change without cascade handler")
		return result.UnknownFailure{Message: "identity change requires a cascade handler"}
	}

	parents, err := e.action.FindReferencingDocuments(
		ctx, tx, documentID, documentPartitionKey, dialect.LockBlockAll)
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			return result.WriteConflict{}
		}
		log.Error("referencing document lookup failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}

	for _, parent := range parents {
		if path[parent.UUID] {
			log.Error("reference cycle detected during cascade",
				zap.String("cycle_document_uuid", parent.UUID.String()))
			return result.UnknownFailure{Message: "reference cycle detected during identity cascade"}
		}

		newParentBody, parentIdentityChanged, err := handler.Cascade(oldBody, newBody, referenced, parent)
		if err != nil {
			log.Error("cascade handler failed", zap.Error(err),
				zap.String("parent_document_uuid", parent.UUID.String()))
			return result.UnknownFailure{Message: err.Error()}
		}

		rows, err := e.action.UpdateDocumentBody(
			ctx, tx, parent.UUID, parent.PartitionKey, newParentBody, traceID)
		if err != nil {
			if e.classify(err) == dialect.ClassWriteConflict {
				log.Debug("write conflict during cascade")
				return result.WriteConflict{}
			}
			log.Error("cascade body write failed", zap.Error(err))
			return result.UnknownFailure{Message: err.Error()}
		}
		if rows != 1 {
			log.Error("cascade body write affected unexpected rows",
				zap.Int64("rows", rows), zap.String("parent_document_uuid", parent.UUID.String()))
			return result.UnknownFailure{Message: "cascade update affected unexpected row count"}
		}
		log.Debug("cascaded identity change to parent",
			zap.String("parent_document_uuid", parent.UUID.String()),
			zap.String("parent_resource_name", parent.ResourceName))

		if parentIdentityChanged {
			parentInfo := model.ResourceInfo{
				ProjectName:     parent.ProjectName,
				ResourceName:    parent.ResourceName,
				ResourceVersion: parent.ResourceVersion,
				IsDescriptor:    parent.IsDescriptor,
			}
			path[parent.UUID] = true
			if res := e.cascade(ctx, tx, log, handler, parentInfo,
				parent.ID, parent.PartitionKey, parent.Body, newParentBody, traceID, path); res != nil {
				return res
			}
			delete(path, parent.UUID)
		}
	}
	return nil
}
