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

// Upsert inserts the candidate document, or overwrites the body of the
// document already owning its referential identity. The identity shape never
// changes on the upsert path; identity changes go through UpdateByID.
func (e *Engine) Upsert(ctx context.Context, tx *sql.Tx, req model.UpsertRequest) result.UpsertResult {
	log := e.opLog("upsert", req.TraceID).With(
		zap.String("resource_name", req.ResourceInfo.ResourceName),
	)

	referentialID := req.DocumentInfo.ReferentialID
	existing, err := e.action.FindDocumentByReferentialID(
		ctx, tx, referentialID, partition.KeyFor(referentialID), dialect.LockBlockAll)
	if err != nil {
		if e.classify(err) == dialect.ClassWriteConflict {
			log.Debug("write conflict resolving referential identity")
			return result.WriteConflict{}
		}
		log.Error("referential identity lookup failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}

	if existing != nil {
		return e.upsertAsUpdate(ctx, tx, log, req, existing)
	}
	return e.upsertAsInsert(ctx, tx, log, req)
}

func (e *Engine) upsertAsInsert(
	ctx context.Context,
	tx *sql.Tx,
	log *zap.Logger,
	req model.UpsertRequest,
) result.UpsertResult {
	body, err := model.StampID(req.Body, req.DocumentUUID)
	if err != nil {
		log.Error("body rejected", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}

	doc := model.Document{
		PartitionKey:        partition.KeyFor(req.DocumentUUID),
		UUID:                req.DocumentUUID,
		ResourceName:        req.ResourceInfo.ResourceName,
		ResourceVersion:     req.ResourceInfo.ResourceVersion,
		ProjectName:         req.ResourceInfo.ProjectName,
		IsDescriptor:        req.ResourceInfo.IsDescriptor,
		Body:                body,
		LastModifiedTraceID: string(req.TraceID),
	}
	documentID, err := e.action.InsertDocument(ctx, tx, doc)
	if err != nil {
		switch e.classify(err) {
		case dialect.ClassWriteConflict:
			log.Debug("write conflict inserting document")
			return result.WriteConflict{}
		default:
			log.Error("document insert failed", zap.Error(err))
			return result.UnknownFailure{Message: err.Error()}
		}
	}

	type aliasInsert struct {
		resourceName string
		target       model.ReferenceTarget
	}
	aliases := []aliasInsert{
		{req.ResourceInfo.ResourceName, model.TargetOf(req.DocumentInfo.ReferentialID)},
	}
	if super := req.DocumentInfo.Superclass; super != nil {
		aliases = append(aliases, aliasInsert{super.ResourceName, model.TargetOf(super.ReferentialID)})
	}
	for _, al := range aliases {
		err := e.action.InsertAlias(ctx, tx, model.Alias{
			ReferentialPartitionKey: al.target.ReferentialPartitionKey,
			ReferentialID:           al.target.ReferentialID,
			DocumentID:              documentID,
			DocumentPartitionKey:    doc.PartitionKey,
		})
		if err != nil {
			switch e.classify(err) {
			case dialect.ClassWriteConflict:
				log.Debug("write conflict inserting alias")
				return result.WriteConflict{}
			case dialect.ClassUniqueViolation:
				// Another document already owns this referential identity.
				log.Debug("identity conflict on alias insert",
					zap.String("alias_resource_name", al.resourceName))
				return result.IdentityConflict{
					ResourceName: al.resourceName,
					Identity:     req.DocumentInfo.Identity.FlattenedPairs(),
				}
			default:
				log.Error("alias insert failed", zap.Error(err))
				return result.UnknownFailure{Message: err.Error()}
			}
		}
	}

	out := e.writeReferences(ctx, tx, log, documentID, doc.PartitionKey, req.DocumentInfo, false)
	if res := out.upsertOutcome(log); res != nil {
		return res
	}

	log.Debug("document inserted", zap.String("document_uuid", req.DocumentUUID.String()))
	return result.InsertSuccess{DocumentUUID: req.DocumentUUID}
}

func (e *Engine) upsertAsUpdate(
	ctx context.Context,
	tx *sql.Tx,
	log *zap.Logger,
	req model.UpsertRequest,
	existing *model.Document,
) result.UpsertResult {
	// An unchanged etag proves the stored body already equals the candidate;
	// skip the write but still report success against the existing uuid.
	if etag := model.ETagOf(req.Body); etag != "" && etag == model.ETagOf(existing.Body) {
		log.Debug("etag unchanged, skipping body write",
			zap.String("document_uuid", existing.UUID.String()))
		return result.UpdateSuccess{DocumentUUID: existing.UUID}
	}

	body, err := model.StampID(req.Body, existing.UUID)
	if err != nil {
		log.Error("body rejected", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}

	rows, err := e.action.UpdateDocumentBody(
		ctx, tx, existing.UUID, existing.PartitionKey, body, req.TraceID)
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
		// The row was read under lock moments ago; losing it here means the
		// store broke its own isolation promises.
		log.Error("document vanished under lock",
			zap.String("document_uuid", existing.UUID.String()))
		return result.UnknownFailure{Message: "document vanished during upsert"}
	case rows > 1:
		log.Error("body overwrite affected multiple rows",
			zap.Int64("rows", rows), zap.String("document_uuid", existing.UUID.String()))
		return result.UnknownFailure{Message: "document update affected multiple rows"}
	}

	out := e.writeReferences(ctx, tx, log, existing.ID, existing.PartitionKey, req.DocumentInfo, true)
	if res := out.upsertOutcome(log); res != nil {
		return res
	}

	log.Debug("document updated by upsert", zap.String("document_uuid", existing.UUID.String()))
	return result.UpdateSuccess{DocumentUUID: existing.UUID}
}
