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

// GetByID is a point lookup by document uuid.
func (e *Engine) GetByID(ctx context.Context, tx *sql.Tx, req model.GetRequest) result.GetResult {
	log := e.opLog("get", req.TraceID).With(
		zap.String("resource_name", req.ResourceInfo.ResourceName),
		zap.String("document_uuid", req.DocumentUUID.String()),
	)

	summary, err := e.action.FindDocumentSummaryByUUID(
		ctx, tx, req.DocumentUUID, partition.KeyFor(req.DocumentUUID), dialect.LockNone)
	if err != nil {
		log.Error("document lookup failed", zap.Error(err))
		return result.UnknownFailure{Message: err.Error()}
	}
	if summary == nil {
		return result.NotExists{}
	}
	return result.GetSuccess{
		DocumentUUID:   req.DocumentUUID,
		Body:           summary.Body,
		LastModifiedAt: summary.LastModifiedAt,
	}
}
